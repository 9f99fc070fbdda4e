package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/unipay-app/unipay-backend/api/responses"
	"github.com/unipay-app/unipay-backend/api/validators"
	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/pkg/config"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

// billingSweeper is the scheduler surface the manual trigger needs.
type billingSweeper interface {
	SyncAllActive(ctx context.Context, horizonDate time.Time) (scheduler.SyncResult, error)
}

type billingSweepRequest struct {
	// HorizonDays overrides the configured scheduling window for this run.
	HorizonDays int `json:"horizon_days" validate:"omitempty,min=1,max=365"`
}

// AdminBillingSweep triggers one synchronous billing sweep and returns its
// counters. The cron job covers steady state; this endpoint exists for
// operators after incidents or bulk imports.
func AdminBillingSweep(sweeper billingSweeper, billing config.BillingConfig, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		horizon := billing.Horizon()
		if r.Body != nil && r.ContentLength != 0 {
			var req billingSweepRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if req.HorizonDays > 0 {
				horizon = time.Duration(req.HorizonDays) * 24 * time.Hour
			}
		}

		horizonDate := now().UTC().Add(horizon)
		result, err := sweeper.SyncAllActive(ctx, horizonDate)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"total_active": result.TotalActive,
				"created":      result.Created,
				"horizon":      horizonDate.Format(time.DateOnly),
			})
			logg.Info(ctx, "manual billing sweep complete")
		}
		responses.WriteSuccess(w, result)
	}
}
