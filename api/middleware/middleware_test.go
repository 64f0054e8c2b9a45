package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

func TestRequestIDKeepsWellFormedHeader(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated id got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\n"+strings.Repeat("x", 80))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	got := resp.Header().Get(requestIDHeader)
	if got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected generated id got %q", got)
	}
}

func TestRequireRoleAcceptsAnyListedRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireRole(enums.UserRoleAdmin, logger.Nop(), enums.UserRoleUser)(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "u1", string(enums.UserRoleUser), "a1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected pass through got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without role got %d", resp.Code)
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "boom") {
		t.Fatalf("panic value must not leak to clients")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context should carry no identity")
	}
	ctx := WithIdentity(context.Background(), "u1", "admin", "jti")
	id, ok := IdentityFromContext(ctx)
	if !ok || id != (Identity{UserID: "u1", Role: "admin", AccessID: "jti"}) {
		t.Fatalf("unexpected identity %+v", id)
	}
	if UserIDFromContext(ctx) != "u1" || RoleFromContext(ctx) != "admin" || AccessIDFromContext(ctx) != "jti" {
		t.Fatal("accessors disagree with identity")
	}
}

func TestCORSEchoesAllowedOriginWithCredentials(t *testing.T) {
	handler := CORS([]string{" https://shop.gulautos.com/ ", ""})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.gulautos.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.gulautos.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if resp.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected origin allowed: %q", got)
	}
}
