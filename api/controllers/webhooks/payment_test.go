package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unipay-app/unipay-backend/internal/webhooks/provider"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
	"github.com/unipay-app/unipay-backend/pkg/types"
)

const testSecret = "whsec_test"

type fakeWebhookService struct {
	handled bool
	err     error
	events  []*provider.Event
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *provider.Event) (bool, error) {
	f.events = append(f.events, event)
	return f.handled, f.err
}

type fakeGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func (f *fakeGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeGuard) Delete(_ context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	delete(f.seen, eventID)
	return nil
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set(provider.SignatureHeader, provider.Sign(payload, testSecret))
	return req
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
	return data
}

func TestPaymentWebhookProcessesEvent(t *testing.T) {
	svc := &fakeWebhookService{handled: true}
	guard := &fakeGuard{}
	handler := PaymentWebhook(svc, guard, testSecret, nil)

	payload := []byte(`{"id":"evt_1","type":"payment.completed","data":{}}`)
	rec := httptest.NewRecorder()
	handler(rec, signedRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeSuccess(t, rec)["status"]; got != "processed" {
		t.Fatalf("status = %v", got)
	}
	if len(svc.events) != 1 || svc.events[0].ID != "evt_1" {
		t.Fatalf("service saw %v", svc.events)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeWebhookService{handled: true}
	handler := PaymentWebhook(svc, &fakeGuard{}, testSecret, nil)

	payload := []byte(`{"id":"evt_1","type":"payment.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set(provider.SignatureHeader, provider.Sign(payload, "wrong-secret"))

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("service must not run on a bad signature")
	}
}

func TestPaymentWebhookRequiresEventIDAndType(t *testing.T) {
	handler := PaymentWebhook(&fakeWebhookService{}, &fakeGuard{}, testSecret, nil)

	rec := httptest.NewRecorder()
	handler(rec, signedRequest(t, []byte(`{"data":{}}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPaymentWebhookDeduplicatesRedelivery(t *testing.T) {
	svc := &fakeWebhookService{handled: true}
	guard := &fakeGuard{}
	handler := PaymentWebhook(svc, guard, testSecret, nil)

	payload := []byte(`{"id":"evt_dup","type":"payment.completed","data":{}}`)

	first := httptest.NewRecorder()
	handler(first, signedRequest(t, payload))
	second := httptest.NewRecorder()
	handler(second, signedRequest(t, payload))

	if second.Code != http.StatusOK {
		t.Fatalf("status = %d", second.Code)
	}
	if got := decodeSuccess(t, second)["status"]; got != "duplicate" {
		t.Fatalf("status = %v", got)
	}
	if len(svc.events) != 1 {
		t.Fatalf("service ran %d times, want 1", len(svc.events))
	}
}

func TestPaymentWebhookClearsMarkOnFailure(t *testing.T) {
	svc := &fakeWebhookService{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "persist")}
	guard := &fakeGuard{}
	handler := PaymentWebhook(svc, guard, testSecret, nil)

	payload := []byte(`{"id":"evt_fail","type":"payment.completed","data":{}}`)
	rec := httptest.NewRecorder()
	handler(rec, signedRequest(t, payload))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt_fail" {
		t.Fatalf("mark not cleared: %v", guard.deleted)
	}
}

func TestPaymentWebhookIgnoresUnknownTypes(t *testing.T) {
	svc := &fakeWebhookService{handled: false}
	handler := PaymentWebhook(svc, &fakeGuard{}, testSecret, nil)

	payload := []byte(`{"id":"evt_other","type":"invoice.created","data":{}}`)
	rec := httptest.NewRecorder()
	handler(rec, signedRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeSuccess(t, rec)["status"]; got != "ignored" {
		t.Fatalf("status = %v", got)
	}
}
