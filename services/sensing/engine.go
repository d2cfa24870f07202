// services/sensing/engine.go
package sensing

import "captouch-go/types"

// Engine is the capacitive sensing collaborator the power scheduler drives.
// Calls are trusted and synchronous-until-interrupt: Scan* starts a
// measurement and returns, Busy reports false once the completion interrupt
// has fired, Process* consumes the finished frame.
//
// Implementations must not make mode decisions; they only measure, baseline
// and classify. The scheduler owns every transition.
type Engine interface {
	// Calibrate runs the one-off bring-up calibration. Failure is fatal to
	// the caller; the engine is unusable without it.
	Calibrate() error

	// ScanAll starts a full-widget scan frame.
	ScanAll()
	// ScanLowPower starts a scan of only the low-power widget subset. The
	// engine repeats it on its own internal cadence until its wake-on-touch
	// timeout expires or a touch is seen.
	ScanLowPower()
	// Busy reports whether a started scan has not yet completed.
	Busy() bool

	// ProcessAll runs baselining and status detection for every widget.
	ProcessAll()
	// ProcessWidget runs detection for a single widget.
	ProcessWidget(id int)

	AnyWidgetActive() bool
	AnyLowPowerWidgetActive() bool

	// Observation returns the immutable snapshot of the last processed frame.
	Observation() types.ActivityObservation

	// ConfigureWakeTimer sets the wake-timer reload used to pace scans while
	// the host sleeps, in microseconds.
	ConfigureWakeTimer(reloadUS uint32)

	// Snapshot exposes the engine's diagnostic buffer, read-only, for the
	// tuner transport.
	Snapshot() []byte
}
