// services/power/indicator.go
package power

import (
	"captouch-go/types"
	"captouch-go/x/mathx"
)

const brightnessMax = 255

// FrameFor maps the latest observation to indicator channels.
//
//	no proximity/touch : both channels off
//	proximity          : presence channel scaled by target distance
//	touch              : contact channel full, presence off (no gradient)
//
// A degenerate calibration (raw at or below baseline) shows "no signal"
// rather than faulting on the division.
func FrameFor(obs types.ActivityObservation) types.IndicatorFrame {
	switch {
	case obs.Proximity >= types.ProximityTouch:
		return types.IndicatorFrame{Contact: brightnessMax}
	case obs.Proximity == types.ProximityNear:
		span := int32(obs.Raw) - int32(obs.Baseline)
		if span <= 0 {
			return types.IndicatorFrame{}
		}
		b := mathx.Clamp(mathx.RoundDiv(uint32(obs.Diff)*brightnessMax, uint32(span)), 0, brightnessMax)
		return types.IndicatorFrame{Presence: uint8(b)}
	}
	return types.IndicatorFrame{}
}
