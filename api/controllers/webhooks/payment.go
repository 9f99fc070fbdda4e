package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/unipay-app/unipay-backend/api/responses"
	"github.com/unipay-app/unipay-backend/internal/webhooks/provider"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

type providerWebhookService interface {
	HandleEvent(ctx context.Context, event *provider.Event) (bool, error)
}

type providerWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// PaymentWebhook handles payment provider events: completion confirmations
// for scheduled payments and wallet top-up checkouts.
func PaymentWebhook(svc providerWebhookService, guard providerWebhookGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := provider.VerifySignature(payload, r.Header.Get(provider.SignatureHeader), secret); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event provider.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload"))
			return
		}
		if event.ID == "" || event.Type == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id and type are required"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		handled, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			// Clear the mark so the provider's retry can succeed.
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := "processed"
		if !handled {
			status = "ignored"
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
				"status":     status,
			})
			logg.Info(ctx, "provider event handled")
		}
		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}
