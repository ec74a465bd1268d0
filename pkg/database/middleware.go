package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/middleware"
)

// WithScopedConn creates middleware that holds one pooled connection for the
// request. Repositories reach it through Conn(ctx); it is released when the
// handler returns. Pool exhaustion answers 503 without calling the handler.
func WithScopedConn(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	logger = logger.Named("db-scope")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.Acquire(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeUnavailable(w)
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

// writeUnavailable matches the handlers' error body for ErrUnavailable.
func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unavailable",
		"message": "Database connection unavailable",
	})
}
