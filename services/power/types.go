// services/power/types.go
package power

import "captouch-go/types"

// Sleeper enters the deepest retained-state sleep and returns on a wake
// interrupt. Implementations must latch wakes (a buffered single-slot
// channel, or the hardware's pending-interrupt semantics) so a completion
// that lands between the busy check and Sleep still wakes the caller.
type Sleeper interface {
	Sleep()
}

// IndicatorSink accepts one refresh of the visual feedback channels.
type IndicatorSink interface {
	Show(types.IndicatorFrame) error
}

// Syncer is the diagnostic transport's per-cycle synchronisation hook,
// run once at the end of every scheduler cycle.
type Syncer interface {
	Sync() error
}
