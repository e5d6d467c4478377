package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rentwatch/config"
)

// purgeChance keeps retention cleanup off the hot path; roughly one
// cycle in twenty runs it.
const purgeChance = 0.05

// CycleRunner is what the scheduler drives each slot.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
	Purge(ctx context.Context)
}

// Scheduler drives monitoring cycles either on a cron expression or a
// randomized interval. The interval jitter keeps request timing from
// looking machine-regular.
type Scheduler struct {
	cfg    *config.Config
	runner CycleRunner
	cron   *cron.Cron
	rng    *rand.Rand
	runMu  sync.Mutex
	stopCh chan struct{}
}

func New(cfg *config.Config, runner CycleRunner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh: make(chan struct{}),
	}
}

// Start runs the first cycle immediately, then schedules the rest.
// Cycle failures are logged, never fatal; the next slot always fires.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runOnce(ctx)

	if s.cfg.Monitoring.Cron != "" {
		log.Printf("Scheduling with cron: %s", s.cfg.Monitoring.Cron)
		_, err := s.cron.AddFunc(s.cfg.Monitoring.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	iv := s.cfg.Monitoring.CheckIntervalMinutes
	log.Printf("Scheduling with randomized interval: %d-%d minutes", iv.Min, iv.Max)
	go s.intervalLoop(ctx)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) intervalLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-timer.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	iv := s.cfg.Monitoring.CheckIntervalMinutes
	span := iv.Max - iv.Min
	minutes := iv.Min
	if span > 0 {
		minutes += s.rng.Intn(span + 1)
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// Cron fires on the clock even when a slow cycle is still going;
	// cycles must never overlap, so late slots are skipped.
	if !s.runMu.TryLock() {
		log.Printf("Previous cycle still running, skipping this slot")
		return
	}
	defer s.runMu.Unlock()

	if err := s.runner.RunCycle(ctx); err != nil {
		log.Printf("Cycle error: %v", err)
	}
	if s.rng.Float64() < purgeChance {
		s.runner.Purge(ctx)
	}
}
