// Package firewall decides whether a request may perform a guarded
// operation. A guard answers unauthenticated before anything else; only an
// authenticated request is ever told about ownership or existence.
package firewall

import (
	"errors"
	"net/http"

	"github.com/indieinfra/simmer/server/resp"
	"github.com/indieinfra/simmer/server/session"
	"github.com/indieinfra/simmer/storage/entity"
)

// ErrUnauthenticated means no valid sign-in accompanies the request.
var ErrUnauthenticated = errors.New("request is not authenticated")

// ErrForbidden means the requester is signed in but does not own the target.
var ErrForbidden = errors.New("requester does not own the target")

// Guard evaluates a request against one protection mode. A nil return allows
// the operation.
type Guard interface {
	Evaluate(r *http.Request) error
}

// UnauthorizedCheck reports whether the request lacks authentication.
type UnauthorizedCheck func(r *http.Request) bool

// ForbiddenCheck reports whether the requester fails the ownership test for
// the target. A missing target surfaces as an error (entity.ErrNotFound),
// never as a mismatch.
type ForbiddenCheck func(r *http.Request) (bool, error)

// CreationGuard protects operations that create a resource: authentication
// is required, ownership does not apply yet.
type CreationGuard struct {
	Unauthorized UnauthorizedCheck
}

func (g CreationGuard) Evaluate(r *http.Request) error {
	if g.Unauthorized(r) {
		return ErrUnauthenticated
	}

	return nil
}

// OwnershipGuard protects operations on an existing resource: the requester
// must be signed in and must own the target.
type OwnershipGuard struct {
	Unauthorized UnauthorizedCheck
	Forbidden    ForbiddenCheck
}

func (g OwnershipGuard) Evaluate(r *http.Request) error {
	if g.Unauthorized(r) {
		return ErrUnauthenticated
	}

	mismatch, err := g.Forbidden(r)
	if err != nil {
		return err
	}

	if mismatch {
		return ErrForbidden
	}

	return nil
}

// Require wraps a handler behind a guard and maps its verdict to the HTTP
// surface: 401 unauthenticated, 403 owner mismatch, 404 missing target.
func Require(g Guard, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := g.Evaluate(r)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrUnauthenticated):
			resp.WriteUnauthorized(w, "Sign in to perform this operation")
		case errors.Is(err, ErrForbidden):
			resp.WriteForbidden(w, "You do not own this resource")
		case errors.Is(err, entity.ErrNotFound):
			resp.WriteNotFound(w, "no such resource")
		default:
			resp.WriteInternalServerError(w, "authorization check failed")
		}
	})
}

// SessionCheck treats a request without an identified user as
// unauthenticated.
func SessionCheck() UnauthorizedCheck {
	return func(r *http.Request) bool {
		return session.UserFromContext(r.Context()) == ""
	}
}

// OwnerCheck compares the signed-in user against the stored owner of the
// entity named by the request path.
func OwnerCheck(store entity.Store, kind entity.Kind, idParam string) ForbiddenCheck {
	return func(r *http.Request) (bool, error) {
		ref := entity.Ref{Kind: kind, ID: r.PathValue(idParam)}

		owner, err := store.Owner(r.Context(), ref)
		if err != nil {
			return false, err
		}

		return owner != session.UserFromContext(r.Context()), nil
	}
}
