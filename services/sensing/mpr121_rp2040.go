//go:build rp2040

// sensing/mpr121_rp2040.go
package sensing

import (
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/mpr121"

	"captouch-go/types"
	"captouch-go/x/timex"
)

// MPR121 register map (filtered/baseline data is not surfaced by the driver).
const (
	regFiltData0L = 0x04
	regBaseline0  = 0x1E
)

// MPR121Engine paces an MPR121 on the configured wake cadence. The chip
// free-runs its own scan; a "scan" here is the timed register read that
// samples it. The wake channel is a single-slot latch: a completion that
// lands between the busy check and the sleep entry is still consumed by the
// next Sleep.
type MPR121Engine struct {
	dev  *mpr121.Device
	bus  drivers.I2C
	cfg  types.SensingConfig
	wake chan struct{}

	busy   atomic.Bool
	reload atomic.Uint32

	// control-loop-owned after the completion handoff
	pending engineSample
	obs     types.ActivityObservation

	anyActive   bool
	anyLPActive bool
}

type engineSample struct {
	touched  bool
	raw      uint16
	baseline uint16
	tsMs     int64
}

func NewMPR121Engine(bus drivers.I2C, cfg types.SensingConfig) *MPR121Engine {
	return &MPR121Engine{
		dev:  mpr121.New(bus),
		bus:  bus,
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

func (e *MPR121Engine) Calibrate() error {
	return e.dev.Configure(mpr121.Config{
		Address:          uint8(e.cfg.Addr),
		TouchThreshold:   e.cfg.TouchThreshold,
		ReleaseThreshold: e.cfg.ReleaseThreshold,
		AutoConfig:       true,
	})
}

func (e *MPR121Engine) ScanAll()      { e.begin() }
func (e *MPR121Engine) ScanLowPower() { e.begin() }

func (e *MPR121Engine) begin() {
	select {
	case <-e.wake: // drop a stale latch from the previous cycle
	default:
	}
	e.busy.Store(true)

	period := time.Duration(e.reload.Load()) * time.Microsecond
	if period == 0 {
		period = time.Millisecond
	}
	time.AfterFunc(period, e.complete)
}

func (e *MPR121Engine) complete() {
	e.pending = e.sample()
	e.busy.Store(false)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *MPR121Engine) sample() engineSample {
	var s engineSample
	s.tsMs = timex.NowMs()

	if st, err := e.dev.Status(); err == nil {
		s.touched = st.Touched(uint8(e.cfg.ProximityWidget))
	}

	ch := uint8(e.cfg.ProximityWidget)
	var buf [2]byte
	if err := e.bus.ReadRegister(uint8(e.cfg.Addr), regFiltData0L+2*ch, buf[:]); err == nil {
		s.raw = uint16(buf[1])<<8 | uint16(buf[0])
	}
	if err := e.bus.ReadRegister(uint8(e.cfg.Addr), regBaseline0+ch, buf[:1]); err == nil {
		// baseline register holds the top 8 bits of the 10-bit value
		s.baseline = uint16(buf[0]) << 2
	}
	return s
}

func (e *MPR121Engine) Busy() bool { return e.busy.Load() }

func (e *MPR121Engine) ProcessAll() {
	e.obs = e.classify()
	active := e.obs.Proximity != types.ProximityNone
	e.anyActive = active
	e.anyLPActive = active
}

func (e *MPR121Engine) ProcessWidget(id int) {
	e.obs = e.classify()
	e.anyActive = false
	e.anyLPActive = e.obs.Proximity != types.ProximityNone
}

func (e *MPR121Engine) classify() types.ActivityObservation {
	s := e.pending
	obs := types.ActivityObservation{
		Raw:      s.raw,
		Baseline: s.baseline,
		TsMs:     s.tsMs,
	}
	if s.raw < s.baseline {
		// A touch drives the filtered count below baseline on this part.
		obs.Diff = s.baseline - s.raw
	}
	switch {
	case s.touched:
		obs.Proximity = types.ProximityTouch
	case obs.Diff > uint16(e.cfg.ReleaseThreshold):
		obs.Proximity = types.ProximityNear
	default:
		obs.Proximity = types.ProximityNone
	}
	obs.AnyWidgetActive = obs.Proximity != types.ProximityNone
	obs.AnyLowPowerWidgetActive = obs.AnyWidgetActive
	return obs
}

func (e *MPR121Engine) AnyWidgetActive() bool         { return e.anyActive }
func (e *MPR121Engine) AnyLowPowerWidgetActive() bool { return e.anyLPActive }

func (e *MPR121Engine) Observation() types.ActivityObservation { return e.obs }

func (e *MPR121Engine) ConfigureWakeTimer(reloadUS uint32) { e.reload.Store(reloadUS) }

func (e *MPR121Engine) Snapshot() []byte {
	return snapshotBytes(e.obs)
}

// MPR121Sleeper blocks on the engine's wake latch. On rp2040 the scheduler
// parks here; TinyGo idles the core while no goroutine is runnable.
type MPR121Sleeper struct{ eng *MPR121Engine }

func NewMPR121Sleeper(e *MPR121Engine) *MPR121Sleeper { return &MPR121Sleeper{eng: e} }

func (s *MPR121Sleeper) Sleep() { <-s.eng.wake }
