// services/power/profiler.go
package power

// TickCounter is a free-running down counter in CPU ticks; Reset reloads it
// to its maximum interval.
type TickCounter interface {
	Reset()
	Value() uint32
}

// Profiler measures elapsed cycle time to recalibrate the wake-timer
// arithmetic at runtime. Intervals longer than maxTicks CPU ticks wrap and
// read short; that ceiling is a known limitation of the counter, not
// compensated here.
type Profiler struct {
	src      TickCounter
	maxTicks uint32
	cpuHz    uint32
}

func NewProfiler(src TickCounter, maxTicks, cpuHz uint32) *Profiler {
	return &Profiler{src: src, maxTicks: maxTicks, cpuHz: cpuHz}
}

// Start rewinds the counter to its maximum interval.
func (p *Profiler) Start() { p.src.Reset() }

// Stop returns the microseconds elapsed since Start.
func (p *Profiler) Stop() uint32 {
	if p.cpuHz == 0 {
		return 0
	}
	ticks := p.maxTicks - p.src.Value()
	return uint32(uint64(ticks) * microsecondsPerSecond / uint64(p.cpuHz))
}
