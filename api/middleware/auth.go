package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/agromart/agromart-backend/api/responses"
	pkgAuth "github.com/agromart/agromart-backend/pkg/auth"
	"github.com/agromart/agromart-backend/pkg/auth/session"
	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
)

// Auth admits requests carrying a valid access token and stores the caller's
// id, role and token id in the request context. With a session checker the
// token must also belong to a live refresh session, so logout revokes access
// tokens immediately.
func Auth(cfg config.JWTConfig, checker session.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, checker)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims, logg)))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, checker session.Checker) (*pkgAuth.AccessTokenClaims, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if checker == nil {
		return claims, nil
	}

	live, err := checker.HasSession(r.Context(), claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	return claims, nil
}

func withCaller(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	userID := claims.UserID.String()
	ctx = withAccessID(WithRole(WithUserID(ctx, userID), claims.Role), claims.ID)
	if logg == nil {
		return ctx
	}
	return logg.WithRole(logg.WithUserID(ctx, userID), string(claims.Role))
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
