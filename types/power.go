package types

// ------------------------
// Power-mode scheduling
// ------------------------

// Mode is the scheduler's operating mode. Zero is deliberately not a valid
// mode so an uninitialised value trips the unknown-mode assert.
type Mode uint8

const (
	// ModeActive scans every sensor at the highest refresh rate.
	ModeActive Mode = 0x01
	// ModeALR (Active Low Refresh-rate) scans every sensor at a reduced rate.
	ModeALR Mode = 0x02
	// ModeWoT (Wake on Touch) scans only the low-power widget on the sensing
	// engine's own internal cadence.
	ModeWoT Mode = 0x03
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeALR:
		return "alr"
	case ModeWoT:
		return "wot"
	}
	return "unknown"
}

// ProximityStatus is the per-cycle classification of the proximity widget.
type ProximityStatus uint8

const (
	ProximityNone  ProximityStatus = 0
	ProximityNear  ProximityStatus = 1
	ProximityTouch ProximityStatus = 3
)

// ActivityObservation is the immutable per-cycle snapshot produced by the
// sensing engine after processing. Raw/Baseline/Diff describe the proximity
// sensor used for indicator feedback.
type ActivityObservation struct {
	AnyWidgetActive         bool
	AnyLowPowerWidgetActive bool
	Proximity               ProximityStatus
	Raw                     uint16
	Baseline                uint16
	Diff                    uint16
	TsMs                    int64
}

// TimerConfig is one mode's computed wake-timer setting.
type TimerConfig struct {
	Mode   Mode
	Reload uint32 // microseconds until the next wake
}

// Retained value: power/state
type PowerState struct {
	Mode         string `json:"mode"`
	TimeoutCount uint32 `json:"timeout_count"`
	TimerReload  uint32 `json:"timer_reload_us"`
}

// IndicatorFrame is one refresh of the visual feedback channels.
// 0 is off, 255 is full brightness.
type IndicatorFrame struct {
	Presence uint8 // proximity distance gradient
	Contact  uint8 // binary touch
}
