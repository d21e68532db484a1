package controllerrun_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"limpet/internal/controllerrun"
	"limpet/internal/coordination"
	"limpet/internal/instance"
	"limpet/internal/ipc"
	"limpet/internal/lifecycle"
	"limpet/internal/logging"
	"limpet/internal/testsupport"
)

func dialWithRetry(t *testing.T, socket string) *ipc.Client {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socket)
		if err == nil {
			return client
		}
		lastErr = err
		time.Sleep(25 * time.Millisecond)
	}
	if lastErr != nil && strings.Contains(lastErr.Error(), "operation not permitted") {
		t.Skipf("skipping socket test: %v", lastErr)
	}
	t.Fatalf("dial %s: %v", socket, lastErr)
	return nil
}

func TestRunExitsCleanOnIPCQuit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	opts := controllerrun.Options{
		Headless: true,
		Getenv:   func(string) string { return "" },
	}

	codes := make(chan int, 1)
	go func() {
		codes <- controllerrun.Run(context.Background(), cfg, opts)
	}()

	client := dialWithRetry(t, cfg.SocketPath())
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.SurfaceState != "visible" {
		t.Fatalf("surface state = %s", status.SurfaceState)
	}

	if _, err := client.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}

	select {
	case code := <-codes:
		if code != lifecycle.ExitCodeClean {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not exit after quit")
	}
}

func TestSupervisedRunWaitsOutPredecessorLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	// Simulate a dying predecessor: its lock is released a moment after the
	// supervised replacement starts contesting it.
	holder := instance.NewArbiter(cfg.LockPath(), cfg.SocketPath(), logging.NewNop())
	role, err := holder.Acquire()
	if err != nil || role != instance.RolePrimary {
		t.Fatalf("holder Acquire: role=%v err=%v", role, err)
	}
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = holder.Release()
	}()

	opts := controllerrun.Options{
		Headless: true,
		Getenv: func(key string) string {
			if key == coordination.SupervisedEnv {
				return "1"
			}
			return ""
		},
	}

	codes := make(chan int, 1)
	go func() {
		codes <- controllerrun.Run(context.Background(), cfg, opts)
	}()

	// Reaching the IPC server proves the replacement became primary instead
	// of forwarding its activation to the dead predecessor and leaving.
	client := dialWithRetry(t, cfg.SocketPath())
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Supervised {
		t.Fatal("daemon must report the supervised launch")
	}

	if _, err := client.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	select {
	case code := <-codes:
		if code != lifecycle.ExitCodeClean {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not exit after quit")
	}
}

func TestContextCancelIsVetoedThenSurfaceReturns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	opts := controllerrun.Options{
		Headless: true,
		Getenv:   func(string) string { return "" },
	}

	codes := make(chan int, 1)
	go func() {
		codes <- controllerrun.Run(ctx, cfg, opts)
	}()

	client := dialWithRetry(t, cfg.SocketPath())
	defer client.Close()

	cancel()
	select {
	case code := <-codes:
		t.Fatalf("vetoed cancellation must not exit, code = %d", code)
	case <-time.After(200 * time.Millisecond):
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := client.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.SurfaceState == "visible" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := client.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	select {
	case code := <-codes:
		if code != lifecycle.ExitCodeClean {
			t.Fatalf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not exit after quit")
	}
}
