package access

import (
	"context"
	"errors"
	"net/http"

	usererrors "teamup/internal/users/errors"
	"teamup/pkg/auth"
	apperrors "teamup/pkg/errors"
	httputil "teamup/pkg/http"
	"teamup/pkg/logger"
	"teamup/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// UserFinder resolves the user a token refers to.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type Guard struct {
	verifier *auth.TokenVerifier
	users    UserFinder
	log      *logger.Logger
}

func NewGuard(verifier *auth.TokenVerifier, users UserFinder, log *logger.Logger) *Guard {
	return &Guard{
		verifier: verifier,
		users:    users,
		log:      log.Component("access"),
	}
}

// Authenticate resolves the bearer credential on r into a Principal. The role
// comes from the stored user, so role changes apply to tokens already issued.
func (g *Guard) Authenticate(r *http.Request) (*auth.Principal, error) {
	raw, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, apperrors.Unauthenticated("Not authorized, no token")
	}

	claims, err := g.verifier.Verify(raw)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.Unauthenticated("Not authorized, token expired")
		}
		return nil, apperrors.Unauthenticated("Not authorized, token failed")
	}

	user, err := g.users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) || errors.Is(err, usererrors.ErrInvalidID) {
			return nil, apperrors.Unauthenticated("Not authorized, user not found")
		}
		g.log.FromContext(r.Context()).Error("Failed to resolve principal", "user_id", claims.Subject, "error", err)
		return nil, apperrors.Internal("Failed to authenticate request", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthenticated("Not authorized, account disabled")
	}

	return &auth.Principal{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}

// Authorize fails with Forbidden when p's role may not attempt op.
func Authorize(p *auth.Principal, op Operation) error {
	if p == nil {
		return apperrors.Unauthenticated("Not authorized")
	}
	if !Allowed(op, p.Role) {
		return apperrors.Forbidden("Role " + p.Role + " is not allowed to perform " + string(op))
	}
	return nil
}

// Require wraps next so it only runs for an authenticated principal whose
// role may attempt op. The principal is attached to the request context.
func (g *Guard) Require(op Operation, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		principal, err := g.Authenticate(r)
		if err == nil {
			err = Authorize(principal, op)
		}
		if err != nil {
			g.log.FromContext(r.Context()).Warn("Request rejected",
				"operation", op,
				"path", r.URL.Path,
				"error", err,
			)
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				g.log.Error("failed to write error response", "handler", "Require", "operation", "WriteError", "error", writeErr)
			}
			return
		}

		next(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)), ps)
	}
}

// CanActOn reports whether p owns the resource (its id is among ownerIDs) or
// is an admin, who bypasses ownership everywhere.
func CanActOn(p *auth.Principal, ownerIDs ...string) bool {
	if p == nil {
		return false
	}
	if p.Role == model.RoleAdmin {
		return true
	}
	for _, id := range ownerIDs {
		if id != "" && id == p.UserID {
			return true
		}
	}
	return false
}

// RequireOwner returns Forbidden unless CanActOn holds.
func RequireOwner(p *auth.Principal, what string, ownerIDs ...string) error {
	if CanActOn(p, ownerIDs...) {
		return nil
	}
	return apperrors.Forbidden("Not authorized to access this " + what)
}
