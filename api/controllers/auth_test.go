package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gulautos/storefront-backend/api/middleware"
	"github.com/gulautos/storefront-backend/internal/auth"
	"github.com/gulautos/storefront-backend/internal/users"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

type fakeAuthService struct {
	auth.Service
	loginErr     error
	logoutCalls  int
	logoutAccess string
}

func (f *fakeAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.LoginResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         &users.UserDTO{Email: req.Email},
	}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, userID uuid.UUID, accessID string) error {
	f.logoutCalls++
	f.logoutAccess = accessID
	return nil
}

func findCookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthLoginSetsTokenCookie(t *testing.T) {
	svc := &fakeAuthService{}
	cookies := CookieSettings{Secure: true, MaxAge: time.Hour}
	handler := AuthLogin(svc, cookies, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.co","password":"secret123"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	cookie := findCookie(resp, middleware.TokenCookie)
	if cookie == nil {
		t.Fatalf("expected token cookie")
	}
	if cookie.Value != "access-token" || !cookie.HttpOnly || !cookie.Secure {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None for secure cookies")
	}
	if cookie.MaxAge != 3600 {
		t.Fatalf("expected max age 3600 got %d", cookie.MaxAge)
	}
}

func TestAuthLoginRejectsInvalidCredentials(t *testing.T) {
	svc := &fakeAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	handler := AuthLogin(svc, CookieSettings{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.co","password":"wrong"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if findCookie(resp, middleware.TokenCookie) != nil {
		t.Fatalf("no cookie expected on failure")
	}
}

func TestAuthLoginValidatesPayload(t *testing.T) {
	handler := AuthLogin(&fakeAuthService{}, CookieSettings{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"not-an-email"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details []struct {
				Field string `json:"field"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Error.Details) == 0 {
		t.Fatalf("expected field details")
	}
}

func TestAuthLogoutClearsCookie(t *testing.T) {
	svc := &fakeAuthService{}
	handler := AuthLogout(svc, CookieSettings{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.NewString(), "user", "access-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.logoutCalls != 1 || svc.logoutAccess != "access-1" {
		t.Fatalf("expected logout for access-1, got %d calls (%q)", svc.logoutCalls, svc.logoutAccess)
	}
	cookie := findCookie(resp, middleware.TokenCookie)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected expired token cookie, got %+v", cookie)
	}
}

func TestAuthVerifyTokenWithoutIdentity(t *testing.T) {
	handler := AuthVerifyToken(&fakeAuthService{}, logger.Nop())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/verify-token", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
