//go:build !rp2040

// platform_host.go runs the stack against the simulated engine so the same
// binary wiring can be exercised off-device. cmd/powersim adds a scripted
// touch session on top; this path just idles.
package main

import (
	"context"
	"image/color"
	"time"

	"captouch-go/bus"
	"captouch-go/services/indicator"
	"captouch-go/services/power"
	"captouch-go/services/sensing"
	"captouch-go/services/tuner"
)

type nullStrip struct{}

func (nullStrip) WriteColors(buf []color.RGBA) error { return nil }

func run(ctx context.Context, b *bus.Bus) {
	eng := sensing.NewSimEngine(sensing.SimConfig{ScanDelay: time.Millisecond})
	coord := power.NewCoordinator()

	tun := tuner.New(b.NewConnection("tuner"), eng)
	coord.Register(0, tun)
	go tun.Start(ctx)

	sink := indicator.New(nullStrip{}, 1)
	coord.Register(1, sink)

	power.Start(ctx, b.NewConnection("power"), coord, power.Platform{
		Engine:    eng,
		Sleeper:   sensing.NewSimSleeper(eng),
		Indicator: sink,
		Tuner:     tun,
	})
}
