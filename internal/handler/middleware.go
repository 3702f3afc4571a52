package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

type contextKey string

const callerKey contextKey = "caller"

// AuthMiddleware validates the bearer token and stores the resolved caller
// in the request context. Handlers pull it out with CallerFromContext and
// pass it to services explicitly.
func AuthMiddleware(authService *service.AuthService, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authorization header is required"})
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authorization header must be a bearer token"})
				return
			}

			caller, err := authService.ParseToken(parts[1])
			if err != nil {
				logger.WithError(err).Warn("Rejected invalid token")
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(model.Caller)
	return caller, ok
}

// callerOrAbort is the handler-side guard: it only fails when a route was
// wired outside the auth middleware by mistake.
func callerOrAbort(w http.ResponseWriter, r *http.Request) (model.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}
	return caller, ok
}
