// services/power/timercalc.go
package power

import (
	"captouch-go/types"
	"captouch-go/x/mathx"
	"captouch-go/x/timex"
)

const microsecondsPerSecond = 1_000_000

// DefaultOscillatorHz is the nominal low-power wake oscillator.
const DefaultOscillatorHz = 40_000

// TimerCalc computes per-mode wake-timer reload values from the target
// refresh rate and the measured or estimated per-cycle overhead. Reload is
// pure: same inputs, same output. The struct is owned by the scheduler
// goroutine and is not safe for concurrent use.
type TimerCalc struct {
	oscHz   uint32
	timings map[types.Mode]types.ModeTiming
}

func NewTimerCalc(cfg types.PowerConfig) *TimerCalc {
	osc := cfg.OscillatorHz
	if osc == 0 {
		osc = DefaultOscillatorHz
	}
	return &TimerCalc{
		oscHz: osc,
		timings: map[types.Mode]types.ModeTiming{
			types.ModeActive: cfg.Active,
			types.ModeALR:    cfg.ALR,
		},
	}
}

// MinReload is the wake timer's resolution floor: one oscillator tick,
// rounded up to whole microseconds.
func (c *TimerCalc) MinReload() uint32 {
	return mathx.CeilDiv(uint32(microsecondsPerSecond), c.oscHz)
}

// Reload computes the wake-timer setting for a mode. An unattainable refresh
// rate (overhead at or above the period) degrades to the minimum resolution
// instead of failing; the result is always strictly positive.
func (c *TimerCalc) Reload(m types.Mode) types.TimerConfig {
	tm, ok := c.timings[m]
	if !ok {
		// WoT and unknown modes have no wake-timer entry; the floor keeps
		// the contract of a positive reload.
		return types.TimerConfig{Mode: m, Reload: c.MinReload()}
	}
	period := timex.PeriodUSFromHz(tm.RefreshHz)
	overhead := tm.ScanTimeUS + tm.ProcessTimeUS
	reload := c.MinReload()
	if period > overhead {
		reload = mathx.Max(period-overhead, c.MinReload())
	}
	return types.TimerConfig{Mode: m, Reload: reload}
}

// SetMeasuredProcess replaces a mode's estimated processing time with a live
// measurement from the runtime profiler. Transition logic is unaffected;
// only the next Reload for that mode changes.
func (c *TimerCalc) SetMeasuredProcess(m types.Mode, elapsedUS uint32) {
	tm, ok := c.timings[m]
	if !ok {
		return
	}
	tm.ProcessTimeUS = elapsedUS
	c.timings[m] = tm
}

// CompensateOscillator rescales the resolution floor to the measured
// oscillator frequency. Called once at bring-up, before the first Reload is
// applied. A zero measurement is ignored.
func (c *TimerCalc) CompensateOscillator(measuredHz uint32) {
	if measuredHz == 0 {
		return
	}
	c.oscHz = measuredHz
}
