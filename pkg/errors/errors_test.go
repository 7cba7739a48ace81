package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeOutOfStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeExpired, status: http.StatusGone, publicMsg: "resource expired"},
		{code: CodeInUse, status: http.StatusConflict, publicMsg: "resource still referenced", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeOutOfStock, "only %d left of %s", 2, "tea")
	if err.Code() != CodeOutOfStock || err.Message() != "only 2 left of tea" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestInternalKeepsTypedErrors(t *testing.T) {
	typed := New(CodeOutOfStock, "product p1")
	wrapped := fmt.Errorf("reserve: %w", typed)
	if got := Internal(wrapped, "persist basket"); got != wrapped {
		t.Fatalf("expected typed chain to pass through, got %v", got)
	}
	if !IsCode(wrapped, CodeOutOfStock) {
		t.Fatalf("expected IsCode to see out of stock")
	}
}

func TestInternalWrapsPlainErrors(t *testing.T) {
	err := Internal(stdErrors.New("connection reset"), "load order")
	if !IsCode(err, CodeInternal) {
		t.Fatalf("expected internal code, got %v", err)
	}

	timeout := Internal(context.DeadlineExceeded, "load order")
	if typed := As(timeout); typed == nil || typed.Message() != "load order: timed out" {
		t.Fatalf("unexpected timeout error %v", timeout)
	}
	if Internal(nil, "noop") != nil {
		t.Fatalf("expected nil passthrough")
	}
}

func TestWrapWithoutCauseStillFails(t *testing.T) {
	// Internal(nil) is nil; a missing row with no driver error needs Wrap.
	err := Wrap(CodeInternal, nil, "reload stock lot")
	if err == nil || !IsCode(err, CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if err.Unwrap() != nil {
		t.Fatalf("expected no cause, got %v", err.Unwrap())
	}
}
