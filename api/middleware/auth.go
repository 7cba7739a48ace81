package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/pkg/auth"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// RevocationChecker reports whether a token id was revoked before expiry.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth admits requests carrying a valid, unrevoked employee access token and
// seeds the context with the employee, role and token metadata. A nil
// checker skips the revocation lookup.
func Auth(cfg config.JWTConfig, revoked RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := authenticate(ctx, cfg, revoked, r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			employeeID := claims.EmployeeID.String()
			ctx = WithEmployee(ctx, employeeID, claims.Role)
			ctx = WithTokenID(ctx, claims.ID)
			ctx = WithTokenExpiry(ctx, claims.ExpiresAt.Time)
			ctx = logg.WithFields(ctx, map[string]any{
				"employee_id": employeeID,
				"actor_role":  string(claims.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, revoked RevocationChecker, header string) (*auth.AccessTokenClaims, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		// a bare token is accepted as well
		token, scheme = scheme, "bearer"
	}
	token = strings.TrimSpace(token)
	if token == "" || !strings.EqualFold(scheme, "bearer") {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer credentials")
	}

	claims, err := auth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no id")
	}
	if revoked == nil {
		return claims, nil
	}
	gone, err := revoked.IsTokenRevoked(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation")
	case gone:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked")
	}
	return claims, nil
}
