// services/sensing/sim.go
package sensing

import (
	"sync"
	"sync/atomic"
	"time"

	"captouch-go/types"
	"captouch-go/x/timex"
)

// Stimulus is the driver-side input to the simulated engine: the raw count
// the next scan will capture, the long-term baseline, and a forced touch.
type Stimulus struct {
	Raw      uint16
	Baseline uint16
	Touch    bool
}

type SimConfig struct {
	ProximityThreshold uint16 // diff at/above which a widget reports proximity
	TouchThreshold     uint16 // diff at/above which a widget reports touch
	ScanDelay          time.Duration // scan completion latency
	WoTTimeout         time.Duration // internal wake-on-touch scan window
}

// SimEngine is a host-side Engine for tests and cmd/powersim. Scan completion
// is signalled the way the hardware does it: a timer callback (the interrupt
// analogue) captures the stimulus, clears the busy flag and drops a token
// into a single-slot wake channel. SimSleeper parks on that slot, so a
// completion that lands between the busy check and Sleep still wakes.
type SimEngine struct {
	cfg SimConfig

	mu    sync.Mutex
	stim  Stimulus
	frame Stimulus // captured at scan completion
	obs   types.ActivityObservation

	reload uint32 // last ConfigureWakeTimer value, for inspection
	busy   atomic.Bool
	wake   chan struct{}
}

func NewSimEngine(cfg SimConfig) *SimEngine {
	if cfg.ProximityThreshold == 0 {
		cfg.ProximityThreshold = 10
	}
	if cfg.TouchThreshold == 0 {
		cfg.TouchThreshold = 40
	}
	if cfg.WoTTimeout <= 0 {
		cfg.WoTTimeout = 5 * time.Millisecond
	}
	return &SimEngine{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

// SetStimulus injects the input the next scan will observe. Safe to call
// from any goroutine; the scan-completion callback copies it, mirroring an
// ISR copying hardware registers.
func (e *SimEngine) SetStimulus(st Stimulus) {
	e.mu.Lock()
	e.stim = st
	e.mu.Unlock()
}

func (e *SimEngine) Calibrate() error {
	e.mu.Lock()
	e.obs = types.ActivityObservation{}
	e.mu.Unlock()
	return nil
}

func (e *SimEngine) ScanAll() { e.begin(e.cfg.ScanDelay) }

func (e *SimEngine) ScanLowPower() {
	e.mu.Lock()
	touch := e.stim.Touch
	e.mu.Unlock()
	// A touch terminates the wake-on-touch window early; otherwise the
	// engine's internal timeout fires.
	d := e.cfg.WoTTimeout
	if touch {
		d = e.cfg.ScanDelay
	}
	e.begin(d)
}

func (e *SimEngine) begin(d time.Duration) {
	// Starting a scan clears any stale completion latch.
	select {
	case <-e.wake:
	default:
	}
	e.busy.Store(true)
	time.AfterFunc(d, e.complete)
}

// complete is the interrupt analogue: bounded work only.
func (e *SimEngine) complete() {
	e.mu.Lock()
	e.frame = e.stim
	e.mu.Unlock()
	e.busy.Store(false)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *SimEngine) Busy() bool { return e.busy.Load() }

func (e *SimEngine) ProcessAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	obs := e.classify()
	obs.AnyWidgetActive = obs.Proximity != types.ProximityNone
	obs.AnyLowPowerWidgetActive = obs.Proximity >= types.ProximityTouch
	e.obs = obs
}

func (e *SimEngine) ProcessWidget(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obs := e.classify()
	// Only the low-power widget result is valid after a reduced scan.
	obs.AnyLowPowerWidgetActive = obs.Proximity >= types.ProximityTouch
	e.obs = obs
}

// classify derives diff and proximity status from the captured frame.
// Callers hold e.mu.
func (e *SimEngine) classify() types.ActivityObservation {
	obs := types.ActivityObservation{
		Raw:      e.frame.Raw,
		Baseline: e.frame.Baseline,
		TsMs:     timex.NowMs(),
	}
	if e.frame.Raw > e.frame.Baseline {
		obs.Diff = e.frame.Raw - e.frame.Baseline
	}
	switch {
	case e.frame.Touch || obs.Diff >= e.cfg.TouchThreshold:
		obs.Proximity = types.ProximityTouch
	case obs.Diff >= e.cfg.ProximityThreshold:
		obs.Proximity = types.ProximityNear
	}
	return obs
}

func (e *SimEngine) AnyWidgetActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obs.AnyWidgetActive
}

func (e *SimEngine) AnyLowPowerWidgetActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obs.AnyLowPowerWidgetActive
}

func (e *SimEngine) Observation() types.ActivityObservation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obs
}

func (e *SimEngine) ConfigureWakeTimer(reloadUS uint32) {
	e.mu.Lock()
	e.reload = reloadUS
	e.mu.Unlock()
}

// LastReload reports the most recently configured wake-timer value.
func (e *SimEngine) LastReload() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reload
}

// Snapshot packs the last observation into the diagnostic buffer the tuner
// ships to the host tool.
func (e *SimEngine) Snapshot() []byte {
	e.mu.Lock()
	obs := e.obs
	e.mu.Unlock()
	return snapshotBytes(obs)
}

// SimSleeper is the host deep-sleep analogue: Sleep parks until the engine's
// wake latch holds a token.
type SimSleeper struct{ eng *SimEngine }

func NewSimSleeper(e *SimEngine) *SimSleeper { return &SimSleeper{eng: e} }

func (s *SimSleeper) Sleep() { <-s.eng.wake }
