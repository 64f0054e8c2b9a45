package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS lets the storefront SPA call the API with its token cookie. Entries
// may use one "*" wildcard, as in https://*.gulautos.com. A bare "*" echoes
// any origin, which is only meant for local development.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
		default:
			opts.AllowedOrigins = append(opts.AllowedOrigins, origin)
		}
	}
	return cors.New(opts).Handler
}
