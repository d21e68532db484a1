package instance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"limpet/internal/ipc"
	"limpet/internal/logging"
)

// Role is the outcome of single-instance arbitration.
type Role int

const (
	// RolePrimary means this process holds the lock and must run the
	// controller.
	RolePrimary Role = iota
	// RoleSecondary means another process holds the lock; this one forwards
	// an activation and exits cleanly.
	RoleSecondary
)

// String returns a stable label for logs.
func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "secondary"
}

// Arbiter enforces single-instance execution with an advisory file lock. The
// lock is held for the whole primary lifetime and released at final
// teardown; a crashed primary's lock is released by the OS, so stale locks
// never block a relaunch.
type Arbiter struct {
	lockPath   string
	socketPath string
	logger     *slog.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

// NewArbiter configures arbitration over the given lock file. The socket
// path is where a secondary forwards its activation.
func NewArbiter(lockPath, socketPath string, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		lockPath:   lockPath,
		socketPath: socketPath,
		logger:     logging.NewComponentLogger(logger, "instance"),
	}
}

// LockPath returns the advisory lock file path.
func (a *Arbiter) LockPath() string {
	return a.lockPath
}

// Acquire attempts to become the primary instance. A held lock yields
// RoleSecondary, never an error; errors are reserved for environmental
// failures like an unwritable state directory.
func (a *Arbiter) Acquire() (Role, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lock != nil {
		return RolePrimary, nil
	}

	if err := os.MkdirAll(filepath.Dir(a.lockPath), 0o755); err != nil {
		return RoleSecondary, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(a.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return RoleSecondary, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		a.logger.Info("another instance holds the lock",
			logging.String("lock", a.lockPath),
		)
		return RoleSecondary, nil
	}

	a.lock = lock
	a.logger.Debug("instance lock acquired", logging.String("lock", a.lockPath))
	return RolePrimary, nil
}

// AcquireWithin keeps retrying acquisition until the window elapses. A
// supervised replacement can start before its dying predecessor has exited,
// and the OS releases the predecessor's lock only at process death; without
// the retry the replacement would forward its activation to a corpse and
// leave. Returns RoleSecondary once the window closes with the lock still
// held elsewhere.
func (a *Arbiter) AcquireWithin(ctx context.Context, window, every time.Duration) (Role, error) {
	deadline := time.Now().Add(window)
	for {
		role, err := a.Acquire()
		if err != nil || role == RolePrimary {
			return role, err
		}
		if !time.Now().Before(deadline) {
			return RoleSecondary, nil
		}
		select {
		case <-ctx.Done():
			return RoleSecondary, ctx.Err()
		case <-time.After(every):
		}
	}
}

// ForwardActivation tells the running primary to show its surface. Called by
// a secondary before it exits. A dead socket is an error so the caller can
// tell the user the primary is unreachable.
func (a *Arbiter) ForwardActivation() error {
	client, err := ipc.Dial(a.socketPath)
	if err != nil {
		return fmt.Errorf("reach primary instance: %w", err)
	}
	defer client.Close()

	resp, err := client.Show()
	if err != nil {
		return fmt.Errorf("forward activation: %w", err)
	}
	a.logger.Info("activation forwarded to primary",
		logging.String("surface_state", resp.State),
	)
	return nil
}

// Release drops the lock. Safe to call when the lock was never acquired.
func (a *Arbiter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lock == nil {
		return nil
	}
	if err := a.lock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	a.lock = nil
	return nil
}
