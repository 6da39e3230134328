package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/V4T54L/safewatch/internal/domain"
)

const APIKeyHeader = "X-API-Key"

// StaticKey accepts exactly one configured key.
type StaticKey string

// IsValid implements domain.APIKeyValidator.
func (k StaticKey) IsValid(_ context.Context, key string) (bool, error) {
	if k == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1, nil
}

// Auth is a middleware factory that returns a new authentication middleware.
// It checks for a valid API key in the X-API-Key header.
func Auth(validator domain.APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				logger.Warn("API key missing from request", "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Unauthorized", "API key required")
				return
			}

			isValid, err := validator.IsValid(r.Context(), apiKey)
			if err != nil {
				logger.Error("failed to validate API key", "error", err)
				writeError(w, http.StatusInternalServerError, "Internal server error", "")
				return
			}

			if !isValid {
				logger.Warn("invalid API key provided", "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg, detail string) {
	body := map[string]string{"error": msg}
	if detail != "" {
		body["message"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
