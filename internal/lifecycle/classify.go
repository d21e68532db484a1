package lifecycle

// Disposition is the exit code class an external supervisor observes.
type Disposition int

const (
	// DispositionClean signals a user-requested exit; the supervisor must not relaunch.
	DispositionClean Disposition = iota
	// DispositionAbnormal signals any other termination; the supervisor should relaunch.
	DispositionAbnormal
)

// Exit codes consumed by the supervisor mechanism.
const (
	ExitCodeClean    = 0
	ExitCodeAbnormal = 1
)

// String returns a stable label for logs.
func (d Disposition) String() string {
	if d == DispositionClean {
		return "clean"
	}
	return "abnormal"
}

// Code returns the process exit code for the disposition.
func (d Disposition) Code() int {
	if d == DispositionClean {
		return ExitCodeClean
	}
	return ExitCodeAbnormal
}

// Classify maps the recorded quit intent to an exit disposition. It is pure
// and must be consulted exactly once, in the controller's final teardown,
// because a later user-requested signal can still change the intent before
// that point.
func Classify(intent Intent) Disposition {
	if intent == IntentUserRequested {
		return DispositionClean
	}
	return DispositionAbnormal
}
