package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "stmtguard/pkg/domain"
	"stmtguard/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	RealmID string
	JTI     string
}

// RequireAuth validates the bearer token and stores the caller in the
// request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithCaller(ctx, requestcontext.Caller{
				Subject: claims.Subject,
				RealmID: id.RealmID(claims.RealmID),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRealm rejects callers whose token realm differs from the realm
// named by the URL parameter param.
func RequireRealm(param func(*http.Request) string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller, ok := requestcontext.CallerFrom(ctx)
			if !ok || caller.RealmID.String() != param(r) {
				logger.WarnContext(ctx, "forbidden - realm mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"realm_id", param(r),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Token is not valid for this realm")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}
