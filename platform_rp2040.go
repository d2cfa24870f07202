//go:build rp2040

// platform_rp2040.go wires the real board: MPR121 on I2C0, WS2812 status
// pixel, tuner over UART0.
package main

import (
	"context"
	"encoding/json"
	"machine"

	"captouch-go/bus"
	"captouch-go/services/indicator"
	"captouch-go/services/power"
	"captouch-go/services/sensing"
	"captouch-go/services/tuner"
	"captouch-go/types"
)

func run(ctx context.Context, b *bus.Bus) {
	setup := b.NewConnection("platform")

	var sensCfg types.SensingConfig
	waitConfig(ctx, setup, "sensing", &sensCfg)
	var indCfg types.IndicatorConfig
	waitConfig(ctx, setup, "indicator", &indCfg)

	if err := machine.I2C0.Configure(machine.I2CConfig{
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
		Frequency: 400 * machine.KHz,
	}); err != nil {
		println("Error: i2c bring-up:", err.Error())
		return
	}

	eng := sensing.NewMPR121Engine(machine.I2C0, sensCfg)
	coord := power.NewCoordinator()

	tun := tuner.New(b.NewConnection("tuner"), eng)
	coord.Register(0, tun)
	go tun.Start(ctx)

	sink := indicator.New(indicator.NewStrip(machine.Pin(indCfg.Pin)), indCfg.Leds)
	coord.Register(1, sink)

	power.Start(ctx, b.NewConnection("power"), coord, power.Platform{
		Engine:         eng,
		Sleeper:        sensing.NewMPR121Sleeper(eng),
		Indicator:      sink,
		Tuner:          tun,
		LowPowerWidget: sensCfg.LowPowerWidget,
	})
}

// waitConfig blocks until the retained "config/<key>" message arrives and
// decodes it into out.
func waitConfig(ctx context.Context, conn *bus.Connection, key string, out any) {
	sub := conn.Subscribe(bus.T("config", key))
	defer conn.Unsubscribe(sub)

	select {
	case <-ctx.Done():
	case msg := <-sub.Channel():
		raw, err := json.Marshal(msg.Payload)
		if err == nil {
			err = json.Unmarshal(raw, out)
		}
		if err != nil {
			println("Warn: config", key, "decode:", err.Error())
		}
	}
}
