package lifecycle

import "sync"

// Intent records why a termination sequence began.
type Intent int

const (
	// IntentUnknown means no quit decision has been made.
	IntentUnknown Intent = iota
	// IntentUserRequested means the sanctioned exit control was invoked.
	IntentUserRequested
	// IntentSystemRequested means the process itself decided to terminate,
	// typically from the fault handler's relaunch path.
	IntentSystemRequested
)

// String returns a stable label for logs and IPC payloads.
func (i Intent) String() string {
	switch i {
	case IntentUserRequested:
		return "user_requested"
	case IntentSystemRequested:
		return "system_requested"
	default:
		return "unknown"
	}
}

// IntentRecorder holds the process-wide quit intent. The first non-unknown
// value recorded wins; later records are ignored. All access is serialized.
type IntentRecorder struct {
	mu     sync.Mutex
	intent Intent
}

// NewIntentRecorder returns a recorder holding IntentUnknown.
func NewIntentRecorder() *IntentRecorder {
	return &IntentRecorder{}
}

// Record stores intent if no decision has been made yet and returns the
// effective intent after the call.
func (r *IntentRecorder) Record(intent Intent) Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intent == IntentUnknown && intent != IntentUnknown {
		r.intent = intent
	}
	return r.intent
}

// Current returns the recorded intent without mutating it.
func (r *IntentRecorder) Current() Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intent
}
