package coordination

import (
	"strings"
	"time"
)

// SupervisedEnv marks a launch performed by the automatic supervisor
// mechanism rather than by the user.
const SupervisedEnv = "LIMPET_SUPERVISED"

// StartupState captures, once at process entry, everything the controller
// needs to decide headless versus visible startup. It is never re-read
// mid-run.
type StartupState struct {
	// Supervised is true when the supervisor mechanism launched this process.
	Supervised bool
	// MarkerFound is true when the previous run left its liveness marker
	// behind, meaning it did not exit through clean teardown.
	MarkerFound bool
	// MarkerTime is the marker timestamp when MarkerFound is true.
	MarkerTime time.Time
}

// ProbeStartup reads the environment flag and the marker exactly once.
func ProbeStartup(getenv func(string) string, store *MarkerStore) StartupState {
	state := StartupState{}
	if getenv != nil {
		state.Supervised = isTruthy(getenv(SupervisedEnv))
	}
	if store != nil {
		state.MarkerTime, state.MarkerFound = store.Read()
	}
	return state
}

// ShowSurfaceAtStart reports whether the surface should be created
// immediately. A supervisor-spawned process stays headless unless the marker
// reveals the previous instance vanished mid-run, in which case the surface
// shows automatically.
func (s StartupState) ShowSurfaceAtStart() bool {
	if !s.Supervised {
		return true
	}
	return s.MarkerFound
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
