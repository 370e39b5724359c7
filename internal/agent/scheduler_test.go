package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu      sync.Mutex
	started int
	active  int
	overlap bool
	block   chan struct{}
}

func (r *countingRunner) RunCycle(ctx context.Context) CycleReport {
	r.mu.Lock()
	r.started++
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return CycleReport{}
}

func (r *countingRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func TestSchedulerRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour)
	s.Start()
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		return runner.startedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerSkipsTickWhileCycleInFlight(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	s := NewScheduler(runner, 20*time.Millisecond)
	s.Start()

	// Let several intervals elapse while the first cycle blocks. They must
	// all be skipped rather than overlapped.
	require.Eventually(t, func() bool {
		return runner.startedCount() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, runner.startedCount())

	close(runner.block)
	require.Eventually(t, func() bool {
		return runner.startedCount() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop(time.Second)
	require.False(t, runner.overlap, "cycles must never overlap")
}

func TestSchedulerStopCancelsStuckCycleAfterGrace(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	s := NewScheduler(runner, time.Hour)
	s.Start()

	require.Eventually(t, func() bool {
		return runner.startedCount() == 1
	}, time.Second, 5*time.Millisecond)

	// A cycle that never finishes holds Stop for the grace period, after
	// which its context is cancelled and the runner unwinds on it.
	done := make(chan struct{})
	go func() {
		s.Stop(200 * time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.active == 0
	}, time.Second, 5*time.Millisecond)
}

// drainingRunner simulates a cycle whose user operation is already submitted:
// the receipt arrives after submission unless the context dies first.
type drainingRunner struct {
	submission     time.Duration
	started        chan struct{}
	cancelledEarly atomic.Bool
}

func (r *drainingRunner) RunCycle(ctx context.Context) CycleReport {
	close(r.started)
	select {
	case <-time.After(r.submission):
	case <-ctx.Done():
		r.cancelledEarly.Store(true)
	}
	return CycleReport{}
}

func TestSchedulerStopLetsInFlightSubmissionDrain(t *testing.T) {
	runner := &drainingRunner{
		submission: 300 * time.Millisecond,
		started:    make(chan struct{}),
	}
	s := NewScheduler(runner, time.Hour)
	s.Start()

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("cycle never started")
	}

	begin := time.Now()
	s.Stop(2 * time.Second)
	elapsed := time.Since(begin)

	require.False(t, runner.cancelledEarly.Load(), "in-flight submission must drain, not be cancelled by Stop")
	require.GreaterOrEqual(t, elapsed, runner.submission, "Stop must wait for the cycle to finish")
	require.Less(t, elapsed, 2*time.Second, "Stop must return once the cycle drains, not sit out the full grace")
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour)
	s.Stop(time.Millisecond) // must not panic
}
