package lifecycle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"limpet/internal/lifecycle"
	"limpet/internal/logging"
)

type countingSurface struct {
	mu       sync.Mutex
	shows    int
	hides    int
	destroys int
}

func (s *countingSurface) Show(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows++
	return nil
}

func (s *countingSurface) Hide() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hides++
	return nil
}

func (s *countingSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroys++
	return nil
}

func (s *countingSurface) counts() (shows, hides, destroys int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows, s.hides, s.destroys
}

func newTestMachine(t *testing.T, surface lifecycle.Surface, intents *lifecycle.IntentRecorder, onExit func()) *lifecycle.Machine {
	t.Helper()
	return lifecycle.NewMachine(surface, intents, 20*time.Millisecond, logging.NewNop(), onExit)
}

func waitForState(t *testing.T, m *lifecycle.Machine, want lifecycle.SurfaceState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, still %s", want, m.State())
}

func TestCloseGestureIsVetoedIntoHidden(t *testing.T) {
	surface := &countingSurface{}
	m := newTestMachine(t, surface, nil, nil)
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if m.HandleCloseRequest() {
		t.Fatal("close must be vetoed before the sanctioned exit control")
	}
	if got := m.State(); got != lifecycle.StateHidden {
		t.Fatalf("state after vetoed close = %s", got)
	}
	shows, hides, destroys := surface.counts()
	if shows != 1 || hides != 1 || destroys != 0 {
		t.Fatalf("unexpected surface calls shows=%d hides=%d destroys=%d", shows, hides, destroys)
	}
}

func TestQuitSignalVetoedThenSurfaceRecreated(t *testing.T) {
	surface := &countingSurface{}
	m := newTestMachine(t, surface, nil, nil)
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if m.HandleQuitSignal() {
		t.Fatal("quit must be vetoed before the sanctioned exit control")
	}
	if got := m.State(); got != lifecycle.StateHidden {
		t.Fatalf("state after vetoed quit = %s", got)
	}
	waitForState(t, m, lifecycle.StateVisible)
}

func TestGestureStormNeverReachesTerminalDestroyed(t *testing.T) {
	surface := &countingSurface{}
	m := newTestMachine(t, surface, nil, nil)
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 10; i++ {
		m.HandleCloseRequest()
		m.HandleQuitSignal()
		m.NotifySurfaceDestroyed()
		if err := m.RequestShow(); err != nil {
			t.Fatalf("RequestShow: %v", err)
		}
	}
	// The machine may be mid-recreate, but never terminally destroyed.
	waitForState(t, m, lifecycle.StateVisible)
	_, _, destroys := surface.counts()
	if destroys != 0 {
		t.Fatalf("surface destroyed %d times without sanctioned exit", destroys)
	}
}

func TestConfirmExitAllowsQuitAndTeardown(t *testing.T) {
	surface := &countingSurface{}
	intents := lifecycle.NewIntentRecorder()
	exitAllowed := make(chan struct{}, 1)
	m := newTestMachine(t, surface, intents, func() { exitAllowed <- struct{}{} })
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.ConfirmExit()
	select {
	case <-exitAllowed:
	case <-time.After(time.Second):
		t.Fatal("exit-allowed hook never fired")
	}
	if intents.Current() != lifecycle.IntentUserRequested {
		t.Fatalf("intent = %s", intents.Current())
	}
	if !m.HandleQuitSignal() {
		t.Fatal("quit must proceed after sanctioned exit")
	}

	m.FinalTeardown()
	if got := m.State(); got != lifecycle.StateDestroyed {
		t.Fatalf("state after teardown = %s", got)
	}
	// No pending re-creation may fire after teardown.
	time.Sleep(60 * time.Millisecond)
	if got := m.State(); got != lifecycle.StateDestroyed {
		t.Fatalf("surface came back after teardown: %s", got)
	}
}

func TestUnexpectedDestructionRecreatesWithoutDecidingIntent(t *testing.T) {
	surface := &countingSurface{}
	intents := lifecycle.NewIntentRecorder()
	m := newTestMachine(t, surface, intents, nil)
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.NotifySurfaceDestroyed()
	waitForState(t, m, lifecycle.StateVisible)
	if intents.Current() != lifecycle.IntentUnknown {
		t.Fatalf("unexpected destruction decided intent: %s", intents.Current())
	}
}

func TestHeadlessStartShowsOnlyOnRequest(t *testing.T) {
	surface := &countingSurface{}
	m := newTestMachine(t, surface, nil, nil)
	if err := m.Start(context.Background(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.State(); got != lifecycle.StateHeadless {
		t.Fatalf("state = %s, want headless", got)
	}
	shows, _, _ := surface.counts()
	if shows != 0 {
		t.Fatalf("surface shown %d times while headless", shows)
	}

	if err := m.RequestShow(); err != nil {
		t.Fatalf("RequestShow: %v", err)
	}
	if got := m.State(); got != lifecycle.StateVisible {
		t.Fatalf("state after show request = %s", got)
	}
}

// reentrantSurface models an event-loop surface whose Hide and Destroy
// block until a gesture delivered from that loop has re-entered the machine,
// the way a terminal surface drains its program goroutine before returning.
type reentrantSurface struct {
	machine *lifecycle.Machine
}

func (s *reentrantSurface) Show(context.Context) error { return nil }

func (s *reentrantSurface) waitForGesture(gesture func()) error {
	done := make(chan struct{})
	go func() {
		gesture()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		return context.DeadlineExceeded
	}
}

func (s *reentrantSurface) Hide() error {
	return s.waitForGesture(func() { s.machine.HandleCloseRequest() })
}

func (s *reentrantSurface) Destroy() error {
	return s.waitForGesture(func() { s.machine.HandleCloseRequest() })
}

func TestQuitSignalCompletesWhileSurfaceDeliversCloseGesture(t *testing.T) {
	surface := &reentrantSurface{}
	m := newTestMachine(t, surface, nil, nil)
	surface.machine = m
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	allowed := make(chan bool, 1)
	go func() { allowed <- m.HandleQuitSignal() }()
	select {
	case proceed := <-allowed:
		if proceed {
			t.Fatal("quit must be vetoed before the sanctioned exit control")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("HandleQuitSignal wedged while the surface delivered a gesture")
	}
}

func TestTeardownCompletesWhileSurfaceDeliversCloseGesture(t *testing.T) {
	surface := &reentrantSurface{}
	intents := lifecycle.NewIntentRecorder()
	m := newTestMachine(t, surface, intents, nil)
	surface.machine = m
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	intents.Record(lifecycle.IntentUserRequested)

	done := make(chan struct{})
	go func() {
		m.FinalTeardown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("FinalTeardown wedged while the surface delivered a gesture")
	}
	if got := m.State(); got != lifecycle.StateDestroyed {
		t.Fatalf("state after teardown = %s", got)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	m := newTestMachine(t, lifecycle.NopSurface{}, nil, nil)
	if err := m.Start(context.Background(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background(), true); err == nil {
		t.Fatal("second Start must fail")
	}
}
