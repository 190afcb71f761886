package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
	"github.com/the-bazaar/bazaar-backend/internal/config"
)

// NewCORSHandler serves the three frontends. The request id is always exposed
// so the portals can quote it in support tickets.
func NewCORSHandler(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	exposed := cfg.ExposedHeaders
	if !slices.Contains(exposed, RequestIDHeader) {
		exposed = append(slices.Clone(exposed), RequestIDHeader)
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
