// services/power/sleep.go
package power

import (
	"runtime"

	"captouch-go/errcode"
)

// Participant is a peripheral with externally observable electrical state
// that must be quiesced around deep sleep. CheckReady is called before
// committing to sleep and may veto; it must be bounded-time and safe to call
// with interrupts masked. Prepare places lines in a safe, non-driving
// configuration; Restore undoes exactly that. CheckFail tells a participant
// that already passed CheckReady that a later one vetoed.
type Participant interface {
	Name() string
	CheckReady() bool
	CheckFail()
	Prepare()
	Restore()
}

// Hooks provides pass-through defaults for participants that only care
// about a subset of the transition callbacks.
type Hooks struct{}

func (Hooks) CheckReady() bool { return true }
func (Hooks) CheckFail()       {}
func (Hooks) Prepare()         {}
func (Hooks) Restore()         {}

// Coordinator sequences quiescence and restoration of registered
// participants around every deep-sleep entry. Registration happens at
// startup; the list is fixed afterwards.
type Coordinator struct {
	parts []registration
}

type registration struct {
	order int
	p     Participant
}

func NewCoordinator() *Coordinator { return &Coordinator{} }

// Register adds a participant. Prepare runs in ascending order, Restore in
// the same order after wake. Equal orders keep registration sequence.
func (c *Coordinator) Register(order int, p Participant) {
	r := registration{order: order, p: p}
	i := len(c.parts)
	for i > 0 && c.parts[i-1].order > order {
		i--
	}
	c.parts = append(c.parts, registration{})
	copy(c.parts[i+1:], c.parts[i:])
	c.parts[i] = r
}

// Sleep runs one guarded deep-sleep entry: poll every participant's
// CheckReady in order, quiesce, sleep, restore. A veto aborts the attempt
// before any Prepare has run and is reported as a deferred error; the
// caller's next loop pass is the retry. Participants that had already
// passed the readiness poll are told via CheckFail, most recent first.
func (c *Coordinator) Sleep(s Sleeper) error {
	for i := range c.parts {
		if c.parts[i].p.CheckReady() {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			c.parts[j].p.CheckFail()
		}
		return &errcode.E{C: errcode.SleepVetoed, Op: "power.sleep", Msg: c.parts[i].p.Name()}
	}
	for i := range c.parts {
		c.parts[i].p.Prepare()
	}
	s.Sleep()
	for i := range c.parts {
		c.parts[i].p.Restore()
	}
	return nil
}

// Yield gives up the processor briefly after a vetoed sleep; the MCU build
// simply stays awake for the pass.
func Yield() { runtime.Gosched() }
