package room

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPhaseTimer_Elapses(t *testing.T) {
	timer := NewPhaseTimer()
	fired := make(chan struct{})

	if err := timer.Start(10*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	if state := timer.State(); state != TimerElapsed {
		t.Errorf("expected ELAPSED, got %s", state)
	}
}

func TestPhaseTimer_CancelBeforeDeadline(t *testing.T) {
	timer := NewPhaseTimer()
	var fired atomic.Bool

	if err := timer.Start(20*time.Millisecond, func() { fired.Store(true) }); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}
	timer.Cancel()

	// Wait well past the original deadline.
	time.Sleep(60 * time.Millisecond)

	if fired.Load() {
		t.Error("onElapsed ran after cancellation")
	}
	if state := timer.State(); state != TimerCancelled {
		t.Errorf("expected CANCELLED, got %s", state)
	}
}

func TestPhaseTimer_CancelAfterFiringIsNoop(t *testing.T) {
	timer := NewPhaseTimer()
	fired := make(chan struct{})

	if err := timer.Start(5*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}
	<-fired

	timer.Cancel()

	if state := timer.State(); state != TimerElapsed {
		t.Errorf("expected ELAPSED after late cancel, got %s", state)
	}
}

func TestPhaseTimer_StartWhileRunning(t *testing.T) {
	timer := NewPhaseTimer()

	if err := timer.Start(time.Minute, func() {}); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}
	defer timer.Cancel()

	err := timer.Start(time.Minute, func() {})
	if !errors.Is(err, ErrTimerAlreadyRunning) {
		t.Errorf("expected ErrTimerAlreadyRunning, got %v", err)
	}
}

func TestPhaseTimer_Reset(t *testing.T) {
	timer := NewPhaseTimer()

	// Reset from Idle is invalid.
	if err := timer.Reset(); err == nil {
		t.Error("expected error resetting an idle timer")
	}

	if err := timer.Start(time.Minute, func() {}); err != nil {
		t.Fatalf("failed to start timer: %v", err)
	}
	timer.Cancel()

	if err := timer.Reset(); err != nil {
		t.Fatalf("failed to reset cancelled timer: %v", err)
	}
	if state := timer.State(); state != TimerIdle {
		t.Errorf("expected IDLE after reset, got %s", state)
	}

	// The timer can run again after a reset.
	fired := make(chan struct{})
	if err := timer.Start(5*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("failed to restart timer: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("restarted timer never fired")
	}
}
