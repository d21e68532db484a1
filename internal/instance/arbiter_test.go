package instance_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"limpet/internal/config"
	"limpet/internal/controller"
	"limpet/internal/instance"
	"limpet/internal/ipc"
	"limpet/internal/lifecycle"
	"limpet/internal/logging"
	"limpet/internal/task"
)

func TestSecondAcquireYieldsSecondary(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "limpet.lock")
	socket := filepath.Join(dir, "limpet.sock")

	first := instance.NewArbiter(lockPath, socket, logging.NewNop())
	role, err := first.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if role != instance.RolePrimary {
		t.Fatalf("first role = %s", role)
	}

	second := instance.NewArbiter(lockPath, socket, logging.NewNop())
	role, err = second.Acquire()
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if role != instance.RoleSecondary {
		t.Fatalf("second role = %s", role)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	role, err = second.Acquire()
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if role != instance.RolePrimary {
		t.Fatalf("role after release = %s", role)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestAcquireIsIdempotentForHolder(t *testing.T) {
	dir := t.TempDir()
	arbiter := instance.NewArbiter(filepath.Join(dir, "limpet.lock"), filepath.Join(dir, "limpet.sock"), logging.NewNop())

	for i := 0; i < 2; i++ {
		role, err := arbiter.Acquire()
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if role != instance.RolePrimary {
			t.Fatalf("role %d = %s", i, role)
		}
	}
	if err := arbiter.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireWithinWinsAfterHolderExits(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "limpet.lock")
	socket := filepath.Join(dir, "limpet.sock")

	holder := instance.NewArbiter(lockPath, socket, logging.NewNop())
	if role, err := holder.Acquire(); err != nil || role != instance.RolePrimary {
		t.Fatalf("holder Acquire: role=%v err=%v", role, err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = holder.Release()
	}()

	replacement := instance.NewArbiter(lockPath, socket, logging.NewNop())
	role, err := replacement.AcquireWithin(context.Background(), 2*time.Second, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireWithin: %v", err)
	}
	if role != instance.RolePrimary {
		t.Fatalf("role = %s, want primary once the holder is gone", role)
	}
	if err := replacement.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireWithinConcedesToLivePrimary(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "limpet.lock")
	socket := filepath.Join(dir, "limpet.sock")

	holder := instance.NewArbiter(lockPath, socket, logging.NewNop())
	if role, err := holder.Acquire(); err != nil || role != instance.RolePrimary {
		t.Fatalf("holder Acquire: role=%v err=%v", role, err)
	}
	defer holder.Release()

	contender := instance.NewArbiter(lockPath, socket, logging.NewNop())
	role, err := contender.AcquireWithin(context.Background(), 150*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireWithin: %v", err)
	}
	if role != instance.RoleSecondary {
		t.Fatalf("role = %s, want secondary while the lock stays held", role)
	}
}

func TestForwardActivationFailsWithoutPrimary(t *testing.T) {
	dir := t.TempDir()
	arbiter := instance.NewArbiter(filepath.Join(dir, "limpet.lock"), filepath.Join(dir, "nobody.sock"), logging.NewNop())
	if err := arbiter.ForwardActivation(); err == nil {
		t.Fatal("expected error when no primary is listening")
	}
}

func TestForwardActivationShowsPrimarySurface(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogDir = dir

	executor, err := task.NewExecutor(task.Options{Binary: "/bin/true"}, logging.NewNop())
	if err != nil {
		t.Fatalf("task.NewExecutor: %v", err)
	}
	ctrl, err := controller.New(controller.Options{
		Cfg:      &cfg,
		Surface:  lifecycle.NopSurface{},
		Executor: executor,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("controller.Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), ctrl, nil, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping socket test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() { srv.Close() })

	arbiter := instance.NewArbiter(cfg.LockPath(), cfg.SocketPath(), logging.NewNop())
	if err := arbiter.ForwardActivation(); err != nil {
		t.Fatalf("ForwardActivation: %v", err)
	}
	if got := ctrl.Status().SurfaceState; got != "visible" {
		t.Fatalf("surface state = %s", got)
	}
}
