package types

// Power configuration supplied on topic "config/power".
// These are startup constants; nothing here is runtime-mutable.

type PowerConfig struct {
	Active       ModeTiming `json:"active"`
	ALR          ModeTiming `json:"alr"`
	OscillatorHz uint32     `json:"oscillator_hz"` // low-power wake oscillator (ILO class)
}

// ModeTiming carries one mode's refresh target and measured/estimated
// per-cycle overhead. WoT has no entry: its cadence belongs to the engine.
type ModeTiming struct {
	RefreshHz     uint32 `json:"refresh_hz"`
	TimeoutSec    uint32 `json:"timeout_sec"`
	ScanTimeUS    uint32 `json:"scan_time_us"`
	ProcessTimeUS uint32 `json:"process_time_us"`
}

// TimeoutCycles converts the inactivity timeout into scheduler cycles.
func (t ModeTiming) TimeoutCycles() uint32 { return t.RefreshHz * t.TimeoutSec }

// Sensing configuration supplied on topic "config/sensing".
type SensingConfig struct {
	Bus              string `json:"bus"` // I²C instance, e.g. "i2c0"
	Addr             uint16 `json:"addr"`
	Electrodes       uint8  `json:"electrodes"`
	LowPowerWidget   int    `json:"low_power_widget"` // widget scanned in WoT
	ProximityWidget  int    `json:"proximity_widget"`
	TouchThreshold   uint8  `json:"touch_threshold"`
	ReleaseThreshold uint8  `json:"release_threshold"`
}

// Tuner transport configuration supplied on topic "config/tuner".
type TunerConfig struct {
	Baud  int `json:"baud"`
	RxPin int `json:"rx_pin"`
	TxPin int `json:"tx_pin"`
}

// Indicator configuration supplied on topic "config/indicator".
type IndicatorConfig struct {
	Pin  int `json:"pin"`
	Leds int `json:"leds"`
}
