package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"armario-estampados/repository"
)

const (
	// DefaultReprocessBatch bounds how many orders one run regenerates
	DefaultReprocessBatch = 50
	// sessionSweepSchedule expires idle customization sessions
	sessionSweepSchedule = "@every 5m"
	reprocessTrigger     = "reprocess"
)

// Sweeper expires idle state
type Sweeper interface {
	Sweep() int
}

// ReprocessReport summarizes one reprocessing run
type ReprocessReport struct {
	Pending     int      `json:"pending"`
	Regenerated int      `json:"regenerated"`
	Failed      []string `json:"failed"`
}

// ReprocessJob regenerates production files for orders flagged needs_regeneration on a
// cron schedule. Overlapping runs are skipped.
type ReprocessJob struct {
	regeneration RegenerationServiceInterface
	repo         repository.CustomizationRepositoryInterface
	cron         *cron.Cron
	batch        int
	timeout      time.Duration
}

// NewReprocessJob registers the reprocessing run on schedule and, when sessions is not nil,
// the idle session sweep
func NewReprocessJob(regeneration RegenerationServiceInterface, repo repository.CustomizationRepositoryInterface, sessions Sweeper, schedule string, batch int) (*ReprocessJob, error) {
	if batch <= 0 {
		batch = DefaultReprocessBatch
	}
	j := &ReprocessJob{
		regeneration: regeneration,
		repo:         repo,
		batch:        batch,
		timeout:      10 * time.Minute,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}

	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("❌ Reprocessing run failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule reprocessing %q: %w", schedule, err)
	}
	if sessions != nil {
		if _, err := j.cron.AddFunc(sessionSweepSchedule, func() { sessions.Sweep() }); err != nil {
			return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
		}
	}
	return j, nil
}

// Start runs the scheduler in its own goroutine
func (j *ReprocessJob) Start() {
	j.cron.Start()
	log.Info().Int("entries", len(j.cron.Entries())).Msg("⏰ Reprocessing scheduler started")
}

// Stop stops scheduling and waits for a running job until ctx is done
func (j *ReprocessJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("⚠️  Reprocessing job still running at shutdown")
	}
}

// RunOnce regenerates up to one batch of flagged orders. A failing order does not stop the
// batch; it stays flagged and is retried on the next run.
func (j *ReprocessJob) RunOnce(ctx context.Context) (ReprocessReport, error) {
	report := ReprocessReport{Failed: []string{}}

	orders, err := j.repo.ListOrdersPendingRegeneration(ctx, j.batch)
	if err != nil {
		return report, fmt.Errorf("failed to list orders pending regeneration: %w", err)
	}
	report.Pending = len(orders)
	if len(orders) == 0 {
		log.Debug().Msg("⏭️  No orders pending regeneration")
		return report, nil
	}

	log.Info().Int("orders", len(orders)).Msg("🔄 Reprocessing historical orders")
	for _, orderID := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := j.regeneration.RegenerateOrder(ctx, orderID, reprocessTrigger); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("❌ Order regeneration failed")
			report.Failed = append(report.Failed, orderID)
			continue
		}
		report.Regenerated++
	}

	log.Info().Int("regenerated", report.Regenerated).Int("failed", len(report.Failed)).Msg("🎉 Reprocessing run completed")
	return report, nil
}
