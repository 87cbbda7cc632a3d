package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
	"proconnect/pkg/platform/httputil"
	"proconnect/pkg/requestcontext"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*AuthClaims, error)
}

// AuthClaims represents the claims we expect from the token validator.
type AuthClaims struct {
	Actor domain.ParticipantRef
}

// RequireAuth rejects requests without a valid bearer token and injects the
// authenticated participant into the request context. Handlers read it back
// with requestcontext.Actor.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if claims.Actor.IsZero() || !claims.Actor.Kind.IsValid() {
				logger.WarnContext(ctx, "unauthorized access - token carries no participant",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, claims.Actor)))
		})
	}
}
