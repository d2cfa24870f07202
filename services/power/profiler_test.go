// services/power/profiler_test.go
package power

import "testing"

type fakeCounter struct {
	max   uint32
	value uint32
	reset int
}

func (c *fakeCounter) Reset()        { c.reset++; c.value = c.max }
func (c *fakeCounter) Value() uint32 { return c.value }

func TestProfiler_ElapsedMicroseconds(t *testing.T) {
	src := &fakeCounter{max: 0x00FFFFFF}
	p := NewProfiler(src, 0x00FFFFFF, 48_000_000)

	p.Start()
	if src.reset != 1 {
		t.Fatal("Start must rewind the counter")
	}
	src.value -= 4800 // 4800 ticks at 48MHz = 100us
	if got := p.Stop(); got != 100 {
		t.Fatalf("elapsed = %dus, want 100", got)
	}
}

func TestProfiler_ZeroElapsed(t *testing.T) {
	src := &fakeCounter{max: 1000}
	p := NewProfiler(src, 1000, 48_000_000)
	p.Start()
	if got := p.Stop(); got != 0 {
		t.Fatalf("elapsed = %d, want 0", got)
	}
}

func TestProfiler_UnconfiguredClockReadsZero(t *testing.T) {
	src := &fakeCounter{max: 1000}
	p := NewProfiler(src, 1000, 0)
	p.Start()
	src.value = 0
	if got := p.Stop(); got != 0 {
		t.Fatalf("elapsed = %d, want 0", got)
	}
}
