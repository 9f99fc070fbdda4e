package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

const defaultSweepHorizonDays = 31

// billingSweeper is the scheduler surface the sweep job needs.
type billingSweeper interface {
	SyncAllActive(ctx context.Context, horizonDate time.Time) (scheduler.SyncResult, error)
}

// BillingSweepJobParams configures the recurring-billing sweep job.
type BillingSweepJobParams struct {
	Logger      *logger.Logger
	Sweeper     billingSweeper
	HorizonDays int
	Now         func() time.Time
}

// NewBillingSweepJob builds the cron job that keeps every active
// subscription's next payment scheduled within the horizon.
func NewBillingSweepJob(params BillingSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	horizonDays := params.HorizonDays
	if horizonDays <= 0 {
		horizonDays = defaultSweepHorizonDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &billingSweepJob{
		logg:        params.Logger,
		sweeper:     params.Sweeper,
		horizonDays: horizonDays,
		now:         now,
	}, nil
}

type billingSweepJob struct {
	logg        *logger.Logger
	sweeper     billingSweeper
	horizonDays int
	now         func() time.Time
}

func (j *billingSweepJob) Name() string { return "billing-sweep" }

func (j *billingSweepJob) Run(ctx context.Context) error {
	horizon := j.now().UTC().AddDate(0, 0, j.horizonDays)

	result, err := j.sweeper.SyncAllActive(ctx, horizon)
	if err != nil {
		return fmt.Errorf("sync active subscriptions: %w", err)
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"total_active": result.TotalActive,
		"synced":       result.Synced,
		"skipped":      result.Skipped,
		"created":      result.Created,
		"horizon":      horizon.Format(time.DateOnly),
	})
	j.logg.Info(reportCtx, "billing sweep complete")
	return nil
}
