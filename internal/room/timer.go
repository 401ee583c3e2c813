package room

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimerAlreadyRunning indicates Start was called while a timer was
// still running. Under correct per-room serialization this cannot happen;
// it is surfaced as a programmer-error assertion.
var ErrTimerAlreadyRunning = errors.New("phase timer already running")

// TimerState enumerates the phase timer states.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerElapsed
	TimerCancelled
)

var timerStateNames = map[TimerState]string{
	TimerIdle:      "IDLE",
	TimerRunning:   "RUNNING",
	TimerElapsed:   "ELAPSED",
	TimerCancelled: "CANCELLED",
}

func (s TimerState) String() string {
	if name, ok := timerStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TIMER_STATE_%d", int(s))
}

// PhaseTimer enforces a deadline on one game phase. A room keeps a single
// instance and restarts it on every phase entry. Cancellation wins any
// race with firing: once Cancel observes the Running state, onElapsed is
// guaranteed never to run, even if the deadline has already passed.
type PhaseTimer struct {
	mu    sync.Mutex
	state TimerState
	timer *time.Timer
}

// NewPhaseTimer returns a timer in the Idle state.
func NewPhaseTimer() *PhaseTimer {
	return &PhaseTimer{state: TimerIdle}
}

// State returns the current timer state.
func (t *PhaseTimer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start schedules onElapsed to fire once after the given duration. Fails
// with ErrTimerAlreadyRunning if a deadline is already outstanding.
// onElapsed runs on the timer goroutine; callers must funnel it through
// their own serialization point.
func (t *PhaseTimer) Start(duration time.Duration, onElapsed func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TimerRunning {
		return ErrTimerAlreadyRunning
	}

	t.state = TimerRunning
	t.timer = time.AfterFunc(duration, func() {
		t.mu.Lock()
		// A cancel that raced with the deadline has already won.
		if t.state != TimerRunning {
			t.mu.Unlock()
			return
		}
		t.state = TimerElapsed
		t.mu.Unlock()

		onElapsed()
	})
	return nil
}

// Cancel stops a running timer and guarantees onElapsed will not be
// invoked afterward. Calling it after the timer has already fired, or
// when nothing is running, is a no-op.
func (t *PhaseTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerRunning {
		return
	}

	t.state = TimerCancelled
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Reset returns an Elapsed or Cancelled timer to Idle. It is invalid from
// any other state.
func (t *PhaseTimer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerElapsed && t.state != TimerCancelled {
		return fmt.Errorf("cannot reset timer in state %s", t.state)
	}

	t.state = TimerIdle
	t.timer = nil
	return nil
}
