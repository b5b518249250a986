package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware enforces bearer-token auth on an http.Handler, attaching the
// resolved user to the request context via WithUser. A Service with no
// JWKS configured (Enabled() == false) passes every request through
// unchanged, mirroring local/dev runs with auth off.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing credentials", http.StatusUnauthorized)
				return
			}

			user, err := service.ValidateJWT(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.Warn("jwt validation failed", "error", err)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func extractBearer(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
