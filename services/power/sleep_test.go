// services/power/sleep_test.go
package power

import (
	"testing"

	"captouch-go/errcode"
)

// recording participant

type recPart struct {
	name  string
	ready bool
	log   *[]string
}

func (p *recPart) Name() string { return p.name }
func (p *recPart) CheckReady() bool {
	*p.log = append(*p.log, p.name+".check")
	return p.ready
}
func (p *recPart) CheckFail() { *p.log = append(*p.log, p.name+".fail") }
func (p *recPart) Prepare()   { *p.log = append(*p.log, p.name+".prepare") }
func (p *recPart) Restore()   { *p.log = append(*p.log, p.name+".restore") }

type countSleeper struct {
	n   int
	log *[]string
}

func (s *countSleeper) Sleep() {
	s.n++
	*s.log = append(*s.log, "sleep")
}

func assertLog(t *testing.T, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestCoordinator_PrepareRestoreOrderEveryCycle(t *testing.T) {
	var log []string
	c := NewCoordinator()
	c.Register(0, &recPart{name: "tuner", ready: true, log: &log})
	c.Register(1, &recPart{name: "led", ready: true, log: &log})
	sl := &countSleeper{log: &log}

	for cycle := 0; cycle < 2; cycle++ {
		log = log[:0]
		if err := c.Sleep(sl); err != nil {
			t.Fatalf("cycle %d: unexpected error %v", cycle, err)
		}
		assertLog(t, log, []string{
			"tuner.check", "led.check",
			"tuner.prepare", "led.prepare",
			"sleep",
			"tuner.restore", "led.restore",
		})
	}
	if sl.n != 2 {
		t.Fatalf("sleeps = %d, want 2", sl.n)
	}
}

func TestCoordinator_RegistrationOrderIsAscending(t *testing.T) {
	var log []string
	c := NewCoordinator()
	c.Register(2, &recPart{name: "c", ready: true, log: &log})
	c.Register(0, &recPart{name: "a", ready: true, log: &log})
	c.Register(1, &recPart{name: "b", ready: true, log: &log})

	if err := c.Sleep(&countSleeper{log: &log}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLog(t, log, []string{
		"a.check", "b.check", "c.check",
		"a.prepare", "b.prepare", "c.prepare",
		"sleep",
		"a.restore", "b.restore", "c.restore",
	})
}

func TestCoordinator_VetoAbortsBeforePrepare(t *testing.T) {
	var log []string
	c := NewCoordinator()
	c.Register(0, &recPart{name: "a", ready: true, log: &log})
	c.Register(1, &recPart{name: "b", ready: true, log: &log})
	c.Register(2, &recPart{name: "busy", ready: false, log: &log})
	sl := &countSleeper{log: &log}

	err := c.Sleep(sl)
	if err == nil {
		t.Fatal("expected veto error")
	}
	if errcode.Of(err) != errcode.SleepVetoed {
		t.Fatalf("code = %v, want %v", errcode.Of(err), errcode.SleepVetoed)
	}
	if sl.n != 0 {
		t.Fatal("sleeper must not run after a veto")
	}
	// CheckFail goes to already-passed participants, most recent first.
	assertLog(t, log, []string{
		"a.check", "b.check", "busy.check",
		"b.fail", "a.fail",
	})
}

func TestCoordinator_VetoIsDeferredNotFatal(t *testing.T) {
	var log []string
	p := &recPart{name: "io", ready: false, log: &log}
	c := NewCoordinator()
	c.Register(0, p)
	sl := &countSleeper{log: &log}

	if err := c.Sleep(sl); err == nil {
		t.Fatal("expected veto")
	}
	// The retry is simply the next attempt.
	p.ready = true
	if err := c.Sleep(sl); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if sl.n != 1 {
		t.Fatalf("sleeps = %d, want 1", sl.n)
	}
}
