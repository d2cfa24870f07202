// services/power/scheduler.go
package power

import (
	"context"

	"captouch-go/bus"
	"captouch-go/errcode"
	"captouch-go/services/sensing"
	"captouch-go/types"
)

var (
	topicPowerState  = bus.T("power", "state")
	topicObservation = bus.T("power", "observation")
)

// Config fixes the scheduler's transition thresholds at startup.
type Config struct {
	ActiveTimeoutCycles uint32 // inactive cycles before Active -> ALR
	ALRTimeoutCycles    uint32 // inactive cycles before ALR -> WoT
	LowPowerWidget      int    // widget processed after a wake-on-touch scan
}

// Deps are the scheduler's collaborators. Engine, Calc, Coord and Sleeper
// are required; the rest are optional and skipped when nil.
type Deps struct {
	Engine    sensing.Engine
	Calc      *TimerCalc
	Coord     *Coordinator
	Sleeper   Sleeper
	Indicator IndicatorSink
	Tuner     Syncer
	Profiler  *Profiler
	Conn      *bus.Connection
}

// Scheduler is the three-mode power state machine. All of its state lives
// here and is touched only by the goroutine running the control loop;
// interrupt-context work elsewhere is limited to flag/latch handoff.
type Scheduler struct {
	cfg Config
	d   Deps

	mode         types.Mode
	timeoutCount uint32
	applied      types.TimerConfig
}

func New(cfg Config, d Deps) *Scheduler {
	return &Scheduler{cfg: cfg, d: d}
}

func (s *Scheduler) Mode() types.Mode            { return s.mode }
func (s *Scheduler) TimeoutCount() uint32        { return s.timeoutCount }
func (s *Scheduler) AppliedTimer() types.TimerConfig { return s.applied }

// Start brings the engine up and enters Active: calibration, initial wake
// timer, one indicator refresh before the first cycle, initial state
// publication. Bring-up failure is fatal class; the caller must not run the
// loop after an error.
func (s *Scheduler) Start() error {
	if err := s.d.Engine.Calibrate(); err != nil {
		return &errcode.E{C: errcode.InitFailed, Op: "power.start", Err: err}
	}
	s.mode = types.ModeActive
	s.timeoutCount = 0
	s.applyTimer(types.ModeActive)
	s.refreshIndicator()
	s.publishState()
	return nil
}

// Run executes scheduler cycles until ctx is cancelled. The loop itself
// never terminates otherwise; every deferred condition (sleep veto, tuner
// busy) is retried simply by the next iteration.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Cycle()
	}
}

// Cycle runs exactly one scan/process/evaluate pass in the current mode,
// then refreshes the indicator and services the tuner.
func (s *Scheduler) Cycle() {
	switch s.mode {
	case types.ModeActive:
		s.activeCycle()
	case types.ModeALR:
		s.alrCycle()
	case types.ModeWoT:
		s.wotCycle()
	default:
		// Impossible mode value. Halting beats guessing a recovery
		// transition that could mask unbounded power draw.
		panic(&errcode.E{C: errcode.UnknownMode, Op: "power.cycle", Msg: s.mode.String()})
	}

	s.refreshIndicator()
	if s.d.Tuner != nil {
		if err := s.d.Tuner.Sync(); err != nil {
			println("Warn: tuner sync:", err.Error())
		}
	}
}

// activeCycle: full scan at the highest refresh rate. Sustained inactivity
// steps down to ALR.
func (s *Scheduler) activeCycle() {
	s.d.Engine.ScanAll()
	s.sleepUntilIdle()

	if s.d.Profiler != nil {
		s.d.Profiler.Start()
	}
	s.d.Engine.ProcessAll()

	if s.d.Engine.AnyWidgetActive() {
		s.timeoutCount = 0
	} else {
		s.timeoutCount++
		if s.timeoutCount > s.cfg.ActiveTimeoutCycles {
			s.enter(types.ModeALR)
		}
	}

	if s.d.Profiler != nil {
		s.d.Calc.SetMeasuredProcess(types.ModeActive, s.d.Profiler.Stop())
	}
}

// alrCycle: full scan at the reduced rate. Any activity jumps straight back
// to Active; further inactivity descends to WoT.
func (s *Scheduler) alrCycle() {
	s.d.Engine.ScanAll()
	s.sleepUntilIdle()

	if s.d.Profiler != nil {
		s.d.Profiler.Start()
	}
	s.d.Engine.ProcessAll()

	if s.d.Engine.AnyWidgetActive() {
		s.enter(types.ModeActive)
	} else {
		s.timeoutCount++
		if s.timeoutCount > s.cfg.ALRTimeoutCycles {
			// WoT paces itself on the engine's internal cadence; no wake
			// timer to reconfigure.
			s.enter(types.ModeWoT)
		}
	}

	if s.d.Profiler != nil {
		s.d.Calc.SetMeasuredProcess(types.ModeALR, s.d.Profiler.Stop())
	}
}

// wotCycle: only the low-power widget subset is scanned; the engine wakes us
// on its internal timeout or a touch. WoT never dwells: the outcome is
// always a transition, to Active on activity or back to ALR otherwise.
func (s *Scheduler) wotCycle() {
	s.d.Engine.ScanLowPower()
	s.sleepUntilIdle()

	s.d.Engine.ProcessWidget(s.cfg.LowPowerWidget)

	if s.d.Engine.AnyLowPowerWidgetActive() {
		s.enter(types.ModeActive)
	} else {
		s.enter(types.ModeALR)
	}
}

// sleepUntilIdle suspends in deep sleep until the engine's completion
// interrupt. A vetoed sleep leaves the loop awake for the pass; re-checking
// the busy flag is the retry. Wake latching in the Sleeper closes the gap
// between the busy check and the sleep entry.
func (s *Scheduler) sleepUntilIdle() {
	for s.d.Engine.Busy() {
		if err := s.d.Coord.Sleep(s.d.Sleeper); err != nil {
			Yield()
		}
	}
}

// enter performs a mode transition: counter reset, wake-timer
// reconfiguration (except into WoT), state publication.
func (s *Scheduler) enter(m types.Mode) {
	s.mode = m
	s.timeoutCount = 0
	if m != types.ModeWoT {
		s.applyTimer(m)
	}
	s.publishState()
	println("Info: power mode ->", m.String())
}

func (s *Scheduler) applyTimer(m types.Mode) {
	tc := s.d.Calc.Reload(m)
	s.d.Engine.ConfigureWakeTimer(tc.Reload)
	s.applied = tc
}

// refreshIndicator maps the latest observation onto the indicator channels
// and publishes the snapshot for anyone watching the bus.
func (s *Scheduler) refreshIndicator() {
	obs := s.d.Engine.Observation()
	if s.d.Conn != nil {
		s.d.Conn.Publish(s.d.Conn.NewMessage(topicObservation, obs, true))
	}
	if s.d.Indicator == nil {
		return
	}
	if err := s.d.Indicator.Show(FrameFor(obs)); err != nil {
		println("Warn: indicator refresh:", err.Error())
	}
}

func (s *Scheduler) publishState() {
	if s.d.Conn == nil {
		return
	}
	st := types.PowerState{
		Mode:         s.mode.String(),
		TimeoutCount: s.timeoutCount,
		TimerReload:  s.applied.Reload,
	}
	s.d.Conn.Publish(s.d.Conn.NewMessage(topicPowerState, st, true))
}
