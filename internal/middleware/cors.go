package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps the whole HTTP handler so browser clients on origins can call
// the API.  Requests carry bearer tokens, never cookies, so credentials stay
// disabled.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Cache", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         600,
	})
	return c.Handler
}
