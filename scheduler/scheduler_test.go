package scheduler

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"rentwatch/config"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	cycles  atomic.Int32
}

func (r *blockingRunner) RunCycle(ctx context.Context) error {
	r.cycles.Add(1)
	r.started <- struct{}{}
	<-r.release
	return nil
}

func (r *blockingRunner) Purge(ctx context.Context) {}

func TestRunOnce_SkipsWhileCycleRunning(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(&config.Config{}, runner)

	done := make(chan struct{})
	go func() {
		s.runOnce(context.Background())
		close(done)
	}()
	<-runner.started

	// A second slot firing mid-cycle must return without running anything.
	s.runOnce(context.Background())
	if got := runner.cycles.Load(); got != 1 {
		t.Fatalf("overlapping slot started a second cycle, got %d", got)
	}

	close(runner.release)
	<-done

	// With the first cycle finished, the next slot runs normally.
	runner.release = make(chan struct{})
	close(runner.release)
	go func() { <-runner.started }()
	s.runOnce(context.Background())
	if got := runner.cycles.Load(); got != 2 {
		t.Fatalf("expected second cycle after the first finished, got %d", got)
	}
}

func TestNextDelay_StaysInRange(t *testing.T) {
	s := &Scheduler{
		cfg: &config.Config{
			Monitoring: config.MonitoringConfig{
				CheckIntervalMinutes: config.IntervalRange{Min: 7, Max: 13},
			},
		},
		rng: rand.New(rand.NewSource(1)),
	}

	for i := 0; i < 200; i++ {
		d := s.nextDelay()
		if d < 7*time.Minute || d > 13*time.Minute {
			t.Fatalf("delay %s outside 7-13 minute range", d)
		}
	}
}

func TestNextDelay_FixedInterval(t *testing.T) {
	s := &Scheduler{
		cfg: &config.Config{
			Monitoring: config.MonitoringConfig{
				CheckIntervalMinutes: config.IntervalRange{Min: 10, Max: 10},
			},
		},
		rng: rand.New(rand.NewSource(1)),
	}

	if d := s.nextDelay(); d != 10*time.Minute {
		t.Fatalf("expected exactly 10 minutes, got %s", d)
	}
}
