package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/assurelog/internal/auth"
	"github.com/JonMunkholm/assurelog/internal/core"
)

// TokenParser turns a bearer token into the caller's identity.
type TokenParser interface {
	Parse(token string) (core.Identity, error)
}

// BearerAuth requires a valid bearer token and stores the identity it
// carries in the request context. Requests without one get 401.
func BearerAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err == nil {
				var id core.Identity
				id, err = tokens.Parse(raw)
				if err == nil {
					ctx := core.ContextWithIdentity(r.Context(), id)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			slog.Warn("auth: rejected request",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", ClientIP(r),
				"error", err,
			)
			unauthorized(w, err)
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="assurelog"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
