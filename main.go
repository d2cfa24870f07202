package main

import (
	"context"
	"time"

	"captouch-go/bus"
	"captouch-go/services/config"
	"captouch-go/services/telemetry"
)

const deviceID = "pico"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)

	b := bus.NewBus(8)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	_ = (&telemetry.Service{}).Start(ctx, b.NewConnection("telemetry"))

	// Blocks in the power control loop.
	run(ctx, b)
}
