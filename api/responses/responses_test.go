package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/types"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *types.APIError `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"status": "ok"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := decode(t, rec)
	if string(body.Data) != `{"status":"ok"}` {
		t.Fatalf("unexpected data %s", body.Data)
	}
}

func TestWriteErrorExposesValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	details := []types.FieldError{{Field: "email", Message: "is required", Value: ""}}
	WriteError(context.Background(), logger.Nop(), rec, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body.Error == nil || body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error %+v", body.Error)
	}
	raw, _ := json.Marshal(body.Error.Details)
	if !bytes.Contains(raw, []byte(`"field":"email"`)) {
		t.Fatalf("expected field details, got %s", raw)
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("dial tcp 10.0.0.1:5432: refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body.Error.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", body.Error.Message)
	}
}

func TestWriteErrorKeepsClientMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.NotFound("product"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode(t, rec); body.Error.Message != "product not found" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestWriteErrorRateLimitKeepsExistingRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "900")
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("expected caller Retry-After to win, got %q", got)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store on API responses")
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-Id", "req-42")
	WriteError(context.Background(), nil, rec, errors.New("db exploded"))

	body := decode(t, rec)
	if body.Error == nil || body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id in error body, got %+v", body.Error)
	}
	if body.Error.Message != "internal server error" {
		t.Fatalf("internal messages must not leak, got %q", body.Error.Message)
	}
}
