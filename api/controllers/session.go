package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/backoffice-backend/api/middleware"
	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/pkg/auth"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// TokenRevoker blacklists an access token id until it would have expired.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
}

// Logout revokes the presented access token for the rest of its lifetime.
// Without a recorded expiry the full configured token lifetime is used.
func Logout(cfg config.JWTConfig, revoker TokenRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if revoker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token revocation unavailable"))
			return
		}

		tokenID := middleware.TokenIDFromContext(r.Context())
		if tokenID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token id"))
			return
		}

		ttl := auth.TokenTTL(cfg)
		if expiresAt, ok := middleware.TokenExpiryFromContext(r.Context()); ok {
			ttl = time.Until(expiresAt)
		}
		if ttl <= 0 {
			// already expired; nothing left to revoke
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := revoker.RevokeToken(r.Context(), tokenID, ttl); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token"))
			return
		}

		if logg != nil {
			logg.Info(r.Context(), "session.logout")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
