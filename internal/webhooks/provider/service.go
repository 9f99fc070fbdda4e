package provider

import (
	"context"
	"encoding/json"
	stdErrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unipay-app/unipay-backend/internal/payments"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

// paymentsService is the payments surface the webhook needs.
type paymentsService interface {
	ProcessPaymentCompletion(ctx context.Context, transactionID uuid.UUID) (*payments.CompletionResult, error)
	FailPayment(ctx context.Context, transactionID uuid.UUID) (*payments.CompletionResult, error)
	CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta models.TransactionMetadata) (*models.Transaction, error)
}

// ServiceParams groups dependencies for the provider webhook service.
type ServiceParams struct {
	Payments paymentsService
	Logger   *logger.Logger
}

// Service translates verified provider events into ledger operations.
type Service struct {
	payments paymentsService
	logger   *logger.Logger
}

// NewService builds a provider webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, stdErrors.New("payments service is required")
	}
	return &Service{payments: params.Payments, logger: params.Logger}, nil
}

// HandleEvent dispatches one provider event. It reports whether the event
// type was handled; unknown types are acknowledged without processing so the
// provider does not retry them forever.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (bool, error) {
	if event == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}

	switch event.Type {
	case EventPaymentCompleted:
		return true, s.handlePaymentCompleted(ctx, event)
	case EventPaymentFailed:
		return true, s.handlePaymentFailed(ctx, event)
	case EventCheckoutCompleted:
		return true, s.handleCheckoutCompleted(ctx, event)
	default:
		if s.logger != nil {
			ctx = s.logger.WithField(ctx, "event_type", event.Type)
			s.logger.Info(ctx, "unhandled provider event type")
		}
		return false, nil
	}
}

func (s *Service) handlePaymentCompleted(ctx context.Context, event *Event) error {
	var data PaymentCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment.completed payload")
	}
	if data.TransactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	_, err := s.payments.ProcessPaymentCompletion(ctx, data.TransactionID)
	return err
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *Event) error {
	var data PaymentFailedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment.failed payload")
	}
	if data.TransactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	if s.logger != nil && data.Reason != "" {
		ctx = s.logger.WithField(ctx, "failure_reason", data.Reason)
	}
	_, err := s.payments.FailPayment(ctx, data.TransactionID)
	return err
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *Event) error {
	var data CheckoutCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout payload")
	}
	if data.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	amount, err := decimal.NewFromString(data.Amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount format")
	}

	_, err = s.payments.CreditWallet(ctx, data.UserID, amount, models.TransactionMetadata{
		ProviderSessionID: data.SessionID,
		PaymentIntent:     data.PaymentIntent,
		PaymentStatus:     data.PaymentStatus,
	})
	return err
}
