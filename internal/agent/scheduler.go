package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhruv457457/AutoPay/internal/logger"
)

// CycleRunner is the unit of work the scheduler drives once per interval.
type CycleRunner interface {
	RunCycle(ctx context.Context) CycleReport
}

// Scheduler fires payment cycles on a fixed interval with an immediate first
// run. At most one cycle runs at a time: when a tick fires while the previous
// cycle is still in flight, the tick is skipped rather than queued, so a slow
// relay can never pile up overlapping submissions.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	// The tick loop and the cycles have separate lifetimes: stopping the
	// loop must not abort a submission already in flight.
	stopLoop   context.CancelFunc
	cycleCtx   context.Context
	stopCycles context.CancelFunc
	done       chan struct{}
}

func NewScheduler(runner CycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. The first cycle fires immediately so a
// freshly started agent does not sit idle for a full interval.
func (s *Scheduler) Start() {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	s.stopLoop = stopLoop
	s.cycleCtx, s.stopCycles = context.WithCancel(context.Background())

	go func() {
		defer close(s.done)
		logger.Logger.Info().Dur("interval", s.interval).Msg("payment scheduler started")

		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// tick starts one cycle in its own goroutine unless one is already running.
// Returns whether a cycle was launched.
func (s *Scheduler) tick() bool {
	if !s.running.CompareAndSwap(false, true) {
		logger.Logger.Warn().Msg("previous payment cycle still running, skipping tick")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runner.RunCycle(s.cycleCtx)
	}()
	return true
}

// Stop halts the tick loop and lets an in-flight cycle drain: a user
// operation that is already submitted keeps its context live for up to grace
// so the receipt wait can complete. Only after grace elapses is the cycle
// context cancelled, unwinding any remaining relay waits.
func (s *Scheduler) Stop(grace time.Duration) {
	if s.stopLoop == nil {
		return
	}
	s.stopLoop()
	<-s.done

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		logger.Logger.Info().Msg("payment scheduler stopped")
	case <-time.After(grace):
		logger.Logger.Warn().Dur("grace", grace).Msg("in-flight payment cycle did not finish within shutdown grace, cancelling")
	}
	s.stopCycles()
}
