package controllers

import (
	"net/http"
	"time"

	"github.com/gulautos/storefront-backend/api/middleware"
	"github.com/gulautos/storefront-backend/api/responses"
	"github.com/gulautos/storefront-backend/api/validators"
	"github.com/gulautos/storefront-backend/internal/auth"
	"github.com/gulautos/storefront-backend/pkg/config"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

// CookieSettings controls the access token cookie.
type CookieSettings struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// CookieSettingsFromConfig derives the cookie policy from the app config.
func CookieSettingsFromConfig(cfg *config.Config) CookieSettings {
	return CookieSettings{
		Secure: cfg.HTTP.CookieSecure,
		Domain: cfg.HTTP.CookieDomain,
		MaxAge: cfg.JWT.AccessTokenTTL(),
	}
}

func (c CookieSettings) cookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if c.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}

func (c CookieSettings) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, int(c.MaxAge.Seconds())))
}

func (c CookieSettings) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

// AuthRegister creates a customer account.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// AuthLogin authenticates credentials and sets the token cookie.
func AuthLogin(svc auth.Service, cookies CookieSettings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cookies.set(w, resp.AccessToken)
		responses.WriteSuccess(w, resp)
	}
}

// AuthVerifyToken returns the user behind a still valid session.
func AuthVerifyToken(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.CurrentUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AuthLogout revokes the session, empties the cart and clears the cookie.
func AuthLogout(svc auth.Service, cookies CookieSettings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := svc.Logout(r.Context(), userID, accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cookies.clear(w)
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh rotates the refresh token and issues a new access token.
func AuthRefresh(svc auth.Service, cookies CookieSettings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req auth.RefreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Refresh(r.Context(), userID, middleware.AccessIDFromContext(r.Context()), req.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cookies.set(w, resp.AccessToken)
		responses.WriteSuccess(w, resp)
	}
}
