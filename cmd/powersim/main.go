// cmd/powersim/main.go
//
// Host-side simulation of the full power stack: simulated sensing engine,
// scheduler, quiesce coordinator, tuner link (in-memory pipe with a scripted
// host tool on the far end) and a printing LED sink. Runs a scripted
// touch session and prints every mode change and indicator update.
package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"net"
	"time"

	"captouch-go/bus"
	"captouch-go/services/config"
	"captouch-go/services/indicator"
	"captouch-go/services/power"
	"captouch-go/services/sensing"
	"captouch-go/services/telemetry"
	"captouch-go/services/tuner"
	"captouch-go/types"
)

// ---------- Configuration ----------

const (
	scanDelay    = 500 * time.Microsecond
	idleBefore   = 200 * time.Millisecond // idle dwell before the touch script
	touchDwell   = 300 * time.Millisecond
	nearDwell    = 300 * time.Millisecond
	tunerPollGap = 250 * time.Millisecond
	runFor       = 10 * time.Second
)

// ---------- Printing LED sink ----------

type printStrip struct {
	last color.RGBA
	init bool
}

func (s *printStrip) WriteColors(buf []color.RGBA) error {
	px := buf[0]
	if s.init && px == s.last {
		return nil
	}
	s.last, s.init = px, true
	fmt.Printf("[led] G=%-3d B=%-3d\n", px.G, px.B)
	return nil
}

// ---------- Scripted tuner host ----------

// tunerHost polls the device for snapshots the way the desktop tool would.
func tunerHost(rwc io.ReadWriteCloser) {
	defer rwc.Close()
	hdr := make([]byte, 3)
	for {
		if _, err := rwc.Write([]byte{0x10, 0x00, 0x00}); err != nil {
			return
		}
		if _, err := io.ReadFull(rwc, hdr); err != nil {
			return
		}
		n := int(hdr[1])<<8 | int(hdr[2])
		buf := make([]byte, n)
		if _, err := io.ReadFull(rwc, buf); err != nil {
			return
		}
		if n >= 6 {
			raw := uint16(buf[1])<<8 | uint16(buf[0])
			diff := uint16(buf[5])<<8 | uint16(buf[4])
			fmt.Printf("[tuner-host] raw=%d diff=%d status=%d\n", raw, diff, buf[6])
		}
		time.Sleep(tunerPollGap)
	}
}

// ---------- Host tick counter ----------

// hostTicks emulates a 24-bit down counter clocked at hostCPUHz, enough to
// feed the cycle profiler off-device.
const (
	hostCPUHz    = 48_000_000
	hostMaxTicks = 1<<24 - 1
)

type hostTicks struct{ start time.Time }

func (c *hostTicks) Reset() { c.start = time.Now() }

func (c *hostTicks) Value() uint32 {
	ticks := uint64(time.Since(c.start).Nanoseconds()) * hostCPUHz / 1_000_000_000
	if ticks > hostMaxTicks {
		ticks = hostMaxTicks
	}
	return hostMaxTicks - uint32(ticks)
}

// ---------- Touch script ----------

func driveStimulus(eng *sensing.SimEngine) {
	time.Sleep(idleBefore)
	for {
		// Finger approaches: raw rises over baseline.
		eng.SetStimulus(sensing.Stimulus{Raw: 270, Baseline: 250})
		time.Sleep(nearDwell)
		// Contact.
		eng.SetStimulus(sensing.Stimulus{Raw: 320, Baseline: 250, Touch: true})
		time.Sleep(touchDwell)
		// Release, back to idle long enough for the descent to WoT.
		eng.SetStimulus(sensing.Stimulus{Raw: 250, Baseline: 250})
		time.Sleep(4 * time.Second)
	}
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), runFor)
	defer cancel()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(16)

	println("[main] starting config service ...")
	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, "pico")
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	eng := sensing.NewSimEngine(sensing.SimConfig{ScanDelay: scanDelay})
	coord := power.NewCoordinator()

	println("[main] starting tuner link ...")
	tun := tuner.New(b.NewConnection("tuner"), eng)
	tuner.UARTDial = func(ctx context.Context, _ types.TunerConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		go tunerHost(rc)
		return lc, nil
	}
	coord.Register(0, tun)
	go tun.Start(ctx)

	sink := indicator.New(&printStrip{}, 1)
	coord.Register(1, sink)

	println("[main] starting telemetry ...")
	_ = (&telemetry.Service{}).Start(ctx, b.NewConnection("telemetry"))

	println("[main] starting touch script ...")
	go driveStimulus(eng)

	println("[main] starting power service ...")
	power.Start(ctx, b.NewConnection("power"), coord, power.Platform{
		Engine:    eng,
		Sleeper:   sensing.NewSimSleeper(eng),
		Indicator: sink,
		Tuner:     tun,
		Profiler:  power.NewProfiler(&hostTicks{}, hostMaxTicks, hostCPUHz),
	})

	println("[main] done")
}
