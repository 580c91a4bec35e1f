package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// WebhookToken rejects deliveries whose shared-secret header does not match
// before the body is read at all.
func WebhookToken(header, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("webhook delivery rejected", "remote", r.RemoteAddr, "has_token", got != "")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid webhook token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
