package square

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("refund.create", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("refund.create", ""); !strings.HasPrefix(got, "refund.create-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestNewIdempotencyKeyDefaultsPrefix(t *testing.T) {
	c := &Client{}
	if got := c.NewIdempotencyKey("  "); !strings.HasPrefix(got, "atl-") {
		t.Fatalf("blank prefix should fall back to atl, got %q", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payment_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "refund already pending",
			status:   http.StatusUnprocessableEntity,
			payload:  `{"errors":[{"category":"API_ERROR","code":"REFUND_ALREADY_PENDING"}]}`,
			wantCode: pkgerrors.CodeStateConflict,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not a typed error", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestMapSquareErrorNonAPIError(t *testing.T) {
	c := &Client{}
	mapped := c.mapSquareError(errors.New("dial tcp: timeout"), "refund payment")
	typed := pkgerrors.As(mapped)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("transport failures should map to the dependency code, got %v", mapped)
	}
}

func TestExtractSquareErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := c.extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestRefundCreateParamsToSquareRequest(t *testing.T) {
	params := RefundCreateParams{
		PaymentID:   "pay_123",
		AmountCents: 4750,
		Currency:    "USD",
		Reason:      "dispute resolved in buyer favor",
	}
	req := params.toSquareRequest("key-1")
	if req.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected idempotency key %q", req.IdempotencyKey)
	}
	if req.PaymentID == nil || *req.PaymentID != "pay_123" {
		t.Fatalf("payment id not carried over")
	}
	if req.AmountMoney == nil || req.AmountMoney.Amount == nil || *req.AmountMoney.Amount != 4750 {
		t.Fatalf("amount not carried over")
	}
	if req.AmountMoney.Currency == nil || *req.AmountMoney.Currency != sq.Currency("USD") {
		t.Fatalf("currency not carried over")
	}
	if req.Reason == nil || *req.Reason != params.Reason {
		t.Fatalf("reason not carried over")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("blank env should default to sandbox, got %q %v", env, err)
	}
	if env, err := normalizeEnv(" Production "); err != nil || env != productionEnv {
		t.Fatalf("env should normalize case and whitespace, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("unknown env should be rejected")
	}
}
