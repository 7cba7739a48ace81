package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

type statusBody struct {
	Status   enums.OrderStatus `json:"status" validate:"required,enum"`
	Quantity int               `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"paid","quantity":2}`))
	var body statusBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if body.Status != enums.OrderStatusPaid || body.Quantity != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyRejectsUnknownEnum(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"lost","quantity":2}`))
	var body statusBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["status"] == "" {
		t.Fatalf("expected status detail, got %v", pkgerrors.As(err).Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"paid","quantity":2,"extra":true}`))
	var body statusBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseParams(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	rctx.URLParams.Add("month", "13")
	rctx.URLParams.Add("day", "7")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	if _, err := ParseUUIDParam(req, "orderId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad uuid, got %v", err)
	}
	if _, err := ParseUUIDParam(req, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing param, got %v", err)
	}
	if _, err := ParseIntParam(req, "month", 1, 12); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range month, got %v", err)
	}
	day, err := ParseIntParam(req, "day", 1, 31)
	if err != nil || day != 7 {
		t.Fatalf("expected day 7, got %d %v", day, err)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":       ``,
		"wrong type":  `{"status":"paid","quantity":"two"}`,
		"two objects": `{"status":"paid","quantity":2}{"status":"paid","quantity":2}`,
		"oversized":   `{"status":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
			var body statusBody
			err := DecodeJSONBody(req, &body)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, ok := pkgerrors.As(err).Details().(map[string]any)
			if !ok || details["error"] == "" {
				t.Fatalf("expected error detail, got %v", pkgerrors.As(err).Details())
			}
		})
	}
}

func TestDecodeJSONBodyReportsRuleParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"paid","quantity":0}`))
	var body statusBody
	err := DecodeJSONBody(req, &body)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["quantity"] != "must be greater than 0" {
		t.Fatalf("unexpected details %v", details)
	}
}
