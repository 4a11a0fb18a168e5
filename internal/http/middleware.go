package http

import (
	"net/http"
	"slices"

	"github.com/chainguard-dev/clog"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORS allows browser calls from origins. "*" allows any origin without
// credentials; listed origins get credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           600,
	})
}

// requestLogger scopes the context logger to the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := clog.FromContext(ctx).With("request_id", m.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(clog.WithLogger(ctx, log)))
	})
}
