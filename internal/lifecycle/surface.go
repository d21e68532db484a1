package lifecycle

import "context"

// SurfaceState is the machine-owned state of the UI surface.
type SurfaceState int

const (
	// StateUninitialized means no surface decision has been made yet.
	StateUninitialized SurfaceState = iota
	// StateHeadless means the process is running with no surface by choice.
	StateHeadless
	// StateVisible means the surface exists and is shown.
	StateVisible
	// StateHidden means the surface was vetoed away but the process lives on.
	StateHidden
	// StateDestroyed is terminal only during final teardown; otherwise the
	// machine schedules a fresh surface.
	StateDestroyed
)

// String returns a stable label for logs and IPC payloads.
func (s SurfaceState) String() string {
	switch s {
	case StateHeadless:
		return "headless"
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	case StateDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// Surface is the rendering collaborator. Implementations report user
// gestures back into the machine. Show must not block; Hide and Destroy may
// block until the surface's event loop drains, so the machine invokes them
// outside its own lock and a gesture delivered during that drain re-enters
// the machine safely.
type Surface interface {
	// Show creates or reveals the surface. The machine calls it from
	// StateUninitialized, StateHeadless, StateHidden, and after a destroyed
	// surface's re-creation delay.
	Show(ctx context.Context) error
	// Hide conceals the surface without destroying process state.
	Hide() error
	// Destroy tears the surface down for good during final teardown.
	Destroy() error
}

// NopSurface is a Surface that renders nothing. Used headless and in tests.
type NopSurface struct{}

func (NopSurface) Show(context.Context) error { return nil }
func (NopSurface) Hide() error                { return nil }
func (NopSurface) Destroy() error             { return nil }
