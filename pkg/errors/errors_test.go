package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("row locked")
	err := Wrap(CodeConcurrencyConflict, cause, "subscription update lost")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping")
	}
	if err.Code() != CodeConcurrencyConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestWrapNilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(CodeNotFound, nil, "wallet missing")
	if err.Unwrap() != nil {
		t.Fatalf("expected no cause")
	}
	if err.Error() != "NOT_FOUND: wallet missing" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOT_A_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestInsufficientFundsIsNotRetryable(t *testing.T) {
	err := New(CodeInsufficientFunds, "balance would go negative")
	if IsRetryable(err) {
		t.Fatal("insufficient funds must not be retryable")
	}
	if got := MetadataFor(err.Code()).HTTPStatus; got != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", got)
	}
}

func TestConcurrencyConflictIsRetryable(t *testing.T) {
	err := Wrap(CodeConcurrencyConflict, stdErrors.New("version mismatch"), "retry sweep")
	if !IsRetryable(err) {
		t.Fatal("concurrency conflicts must be retryable")
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeValidation, "amount must be positive")
	wrapped := Wrap(CodeInternal, inner, "credit wallet")

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	// Outermost code wins when both layers are typed.
	if typed.Code() != CodeInternal {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if !IsCode(inner, CodeValidation) {
		t.Fatal("IsCode should match the inner error")
	}
}
