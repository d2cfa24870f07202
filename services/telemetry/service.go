package telemetry

import (
	"context"
	"time"

	"captouch-go/bus"
	"captouch-go/types"
)

var (
	topicConfigTelemetry = bus.T("config", "telemetry")
	topicPowerState      = bus.T("power", "state")
)

// Service periodically logs the latest power state so a serial console shows
// the device is alive even when the scheduler dwells in one mode for hours.
type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigTelemetry)
	defer conn.Unsubscribe(cfgSub)

	stateSub := conn.Subscribe(topicPowerState)
	defer conn.Unsubscribe(stateSub)

	var last types.PowerState
	haveState := false

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: telemetry service stopping")
			return
		case t := <-tick.C:
			if haveState {
				println("Info:", t.Format("15:04:05"), "mode", last.Mode,
					"idle_cycles", last.TimeoutCount, "reload_us", last.TimerReload)
			} else {
				println("Info:", t.Format("15:04:05"), "awaiting power state")
			}
		case msg := <-stateSub.Channel():
			if st, ok := msg.Payload.(types.PowerState); ok {
				if haveState && st.Mode != last.Mode {
					println("Info: mode change", last.Mode, "->", st.Mode)
				}
				last = st
				haveState = true
			}
		case msg := <-cfgSub.Channel():
			// Change tick interval if needed
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"]; ok {
					if interval, ok := iv.(float64); ok && interval > 0 {
						tick.Reset(time.Duration(interval) * time.Second)
						println("Info:", "Telemetry interval set to", interval, "seconds")
					}
				}
			}
		}
	}
}

// Start the telemetry service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
