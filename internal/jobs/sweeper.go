// Package jobs runs scheduled maintenance for the quote service.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const sweepTimeout = 5 * time.Minute

// Sweeper removes expired entries from a store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// AssetSweeper runs a Sweeper on a cron schedule.
type AssetSweeper struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *logging.Logger

	mu      sync.Mutex
	running bool
}

// NewAssetSweeper validates schedule and registers the job. Call Start to run it.
func NewAssetSweeper(sweeper Sweeper, schedule string, logger *logging.Logger) (*AssetSweeper, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("jobs: sweeper is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &AssetSweeper{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logger.Component("jobs.asset_sweep"),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("jobs: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *AssetSweeper) Start() {
	s.logger.Info("asset sweeper started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *AssetSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("asset sweeper stop timed out")
	}
}

// RunOnce sweeps immediately and returns how many entries were removed.
func (s *AssetSweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("asset sweep failed", "error", err, "removed", removed)
		return removed, err
	}
	s.logger.Info("asset sweep completed", "removed", removed, "duration_ms", time.Since(start).Milliseconds())
	return removed, nil
}

func (s *AssetSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}
