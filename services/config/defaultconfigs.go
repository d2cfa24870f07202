package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPico = `{
  "power": {
    "active": {
      "refresh_hz": 128,
      "timeout_sec": 5,
      "scan_time_us": 2891,
      "process_time_us": 23
    },
    "alr": {
      "refresh_hz": 32,
      "timeout_sec": 5,
      "scan_time_us": 2891,
      "process_time_us": 23
    },
    "oscillator_hz": 40000
  },
  "sensing": {
    "bus": "i2c0",
    "addr": 90,
    "electrodes": 12,
    "low_power_widget": 0,
    "proximity_widget": 0,
    "touch_threshold": 40,
    "release_threshold": 20
  },
  "tuner": {
    "baud": 115200,
    "rx_pin": 1,
    "tx_pin": 0
  },
  "indicator": {
    "pin": 16,
    "leds": 1
  },
  "telemetry": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
