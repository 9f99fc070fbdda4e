package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unipay-app/unipay-backend/pkg/config"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "test", Port: "0"},
		Billing:  config.BillingConfig{HorizonDays: 31},
		Provider: config.ProviderConfig{WebhookSecret: "whsec_test"},
	}
}

func newTestRouter(cfg *config.Config, dbP, redisP stubPinger) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, dbP, redisP, nil, nil, nil)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if env := resp.Header().Get("X-UniPay-Env"); env != "test" {
		t.Fatalf("env header = %q", env)
	}
}

func TestHealthReady(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when redis is down got %d", resp.Code)
	}
}

func TestPaymentWebhookRouteRejectsUnsignedRequest(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(`{"id":"evt_1","type":"payment.completed"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned payload got %d", resp.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
