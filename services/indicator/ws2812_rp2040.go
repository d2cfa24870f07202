//go:build rp2040

// indicator/ws2812_rp2040.go
package indicator

import (
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// NewStrip configures pin for output and returns the WS2812 chain on it.
func NewStrip(pin machine.Pin) Strip {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dev := ws2812.New(pin)
	return dev
}
