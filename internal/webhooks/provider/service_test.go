package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipay-app/unipay-backend/internal/payments"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

type fakePayments struct {
	completedID  uuid.UUID
	failedID     uuid.UUID
	creditedUser uuid.UUID
	creditedAmt  decimal.Decimal
	creditedMeta models.TransactionMetadata
	err          error
}

func (f *fakePayments) ProcessPaymentCompletion(_ context.Context, transactionID uuid.UUID) (*payments.CompletionResult, error) {
	f.completedID = transactionID
	if f.err != nil {
		return nil, f.err
	}
	return &payments.CompletionResult{}, nil
}

func (f *fakePayments) FailPayment(_ context.Context, transactionID uuid.UUID) (*payments.CompletionResult, error) {
	f.failedID = transactionID
	if f.err != nil {
		return nil, f.err
	}
	return &payments.CompletionResult{}, nil
}

func (f *fakePayments) CreditWallet(_ context.Context, userID uuid.UUID, amount decimal.Decimal, meta models.TransactionMetadata) (*models.Transaction, error) {
	f.creditedUser = userID
	f.creditedAmt = amount
	f.creditedMeta = meta
	if f.err != nil {
		return nil, f.err
	}
	return &models.Transaction{}, nil
}

func TestHandleEventPaymentCompleted(t *testing.T) {
	fake := &fakePayments{}
	svc, err := NewService(ServiceParams{Payments: fake})
	require.NoError(t, err)

	txnID := uuid.New()
	data, err := json.Marshal(PaymentCompletedData{TransactionID: txnID})
	require.NoError(t, err)

	handled, err := svc.HandleEvent(context.Background(), &Event{
		ID:   "evt_1",
		Type: EventPaymentCompleted,
		Data: data,
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, txnID, fake.completedID)
}

func TestHandleEventPaymentFailed(t *testing.T) {
	fake := &fakePayments{}
	svc, err := NewService(ServiceParams{Payments: fake})
	require.NoError(t, err)

	txnID := uuid.New()
	data, err := json.Marshal(PaymentFailedData{TransactionID: txnID, Reason: "card_declined"})
	require.NoError(t, err)

	handled, err := svc.HandleEvent(context.Background(), &Event{
		ID:   "evt_4",
		Type: EventPaymentFailed,
		Data: data,
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, txnID, fake.failedID)
	assert.Equal(t, uuid.Nil, fake.completedID, "failure must not complete the payment")
}

func TestHandleEventCheckoutCompleted(t *testing.T) {
	fake := &fakePayments{}
	svc, err := NewService(ServiceParams{Payments: fake})
	require.NoError(t, err)

	userID := uuid.New()
	data, err := json.Marshal(CheckoutCompletedData{
		UserID:        userID,
		Amount:        "50.00",
		SessionID:     "cs_test_123",
		PaymentIntent: "pi_test_456",
		PaymentStatus: "paid",
	})
	require.NoError(t, err)

	handled, err := svc.HandleEvent(context.Background(), &Event{
		ID:   "evt_2",
		Type: EventCheckoutCompleted,
		Data: data,
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, userID, fake.creditedUser)
	assert.True(t, fake.creditedAmt.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, "cs_test_123", fake.creditedMeta.ProviderSessionID)
}

func TestHandleEventUnknownTypeIsAcknowledged(t *testing.T) {
	fake := &fakePayments{}
	svc, err := NewService(ServiceParams{Payments: fake})
	require.NoError(t, err)

	handled, err := svc.HandleEvent(context.Background(), &Event{ID: "evt_3", Type: "invoice.created"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, uuid.Nil, fake.completedID)
	assert.Equal(t, uuid.Nil, fake.creditedUser)
}

func TestHandleEventValidation(t *testing.T) {
	fake := &fakePayments{}
	svc, err := NewService(ServiceParams{Payments: fake})
	require.NoError(t, err)

	ctx := context.Background()

	cases := map[string]*Event{
		"missing transaction id": {
			Type: EventPaymentCompleted,
			Data: json.RawMessage(`{}`),
		},
		"malformed payment data": {
			Type: EventPaymentCompleted,
			Data: json.RawMessage(`{"transaction_id": 7}`),
		},
		"missing failed transaction id": {
			Type: EventPaymentFailed,
			Data: json.RawMessage(`{"reason":"card_declined"}`),
		},
		"missing user id": {
			Type: EventCheckoutCompleted,
			Data: json.RawMessage(`{"amount":"50.00"}`),
		},
		"bad amount": {
			Type: EventCheckoutCompleted,
			Data: json.RawMessage(`{"user_id":"` + uuid.NewString() + `","amount":"fifty"}`),
		},
	}
	for name, event := range cases {
		_, err := svc.HandleEvent(ctx, event)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment.completed"}`)
	secret := "whsec_test"

	require.NoError(t, VerifySignature(payload, Sign(payload, secret), secret))

	err := VerifySignature(payload, Sign(payload, "other"), secret)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = VerifySignature(payload, "", secret)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = VerifySignature(payload, Sign(payload, secret), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

type fakeIdemStore struct {
	keys map[string]time.Duration
}

func (f *fakeIdemStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]time.Duration{}
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = ttl
	return true, nil
}

func (f *fakeIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return "up:idem:" + scope + ":" + id
}

func TestIdempotencyGuard(t *testing.T) {
	store := &fakeIdemStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "provider")
	require.NoError(t, err)

	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen, "redelivery must be flagged")

	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "deleted mark allows reprocessing")

	_, err = guard.CheckAndMark(ctx, "")
	require.Error(t, err)
}
