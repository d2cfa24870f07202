// services/power/service.go
package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"captouch-go/bus"
	"captouch-go/services/sensing"
	"captouch-go/types"
)

// Platform groups the hardware-facing collaborators injected by the board
// layer (host simulation or rp2040 build).
type Platform struct {
	Engine    sensing.Engine
	Sleeper   Sleeper
	Indicator IndicatorSink
	Tuner     Syncer
	Profiler  *Profiler

	// MeasuredOscillatorHz compensates the wake timer for the real
	// low-power oscillator. Zero keeps the configured nominal value.
	MeasuredOscillatorHz uint32
	LowPowerWidget       int
}

// Start runs the power service: wait for the retained configuration on
// "config/power", build the calculator and scheduler, then drive the control
// loop until ctx is cancelled. Bring-up failure aborts the process; running
// on without a calibrated engine risks undefined power behaviour.
func Start(ctx context.Context, conn *bus.Connection, coord *Coordinator, p Platform) {
	cfgSub := conn.Subscribe(bus.T("config", "power"))
	defer conn.Unsubscribe(cfgSub)

	var cfg types.PowerConfig
	select {
	case <-ctx.Done():
		return
	case msg, ok := <-cfgSub.Channel():
		if !ok {
			return
		}
		c, err := decodeConfig(msg.Payload)
		if err != nil {
			println("Warn: power config decode:", err.Error())
			return
		}
		cfg = c
	}

	calc := NewTimerCalc(cfg)
	calc.CompensateOscillator(p.MeasuredOscillatorHz)

	sch := New(Config{
		ActiveTimeoutCycles: cfg.Active.TimeoutCycles(),
		ALRTimeoutCycles:    cfg.ALR.TimeoutCycles(),
		LowPowerWidget:      p.LowPowerWidget,
	}, Deps{
		Engine:    p.Engine,
		Calc:      calc,
		Coord:     coord,
		Sleeper:   p.Sleeper,
		Indicator: p.Indicator,
		Tuner:     p.Tuner,
		Profiler:  p.Profiler,
		Conn:      conn,
	})

	if err := sch.Start(); err != nil {
		panic(err)
	}
	_ = sch.Run(ctx)
}

func decodeConfig(p any) (types.PowerConfig, error) {
	var cfg types.PowerConfig
	switch v := p.(type) {
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already a decoded object; re-marshal for simplicity.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case types.PowerConfig:
		cfg = v
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	if cfg.Active.RefreshHz == 0 || cfg.ALR.RefreshHz == 0 {
		return cfg, errors.New("refresh rates must be non-zero")
	}
	return cfg, nil
}
