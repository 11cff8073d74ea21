package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
)

// Principal is the authenticated caller of one request.
type Principal struct {
	UserID  primitive.ObjectID
	Email   string
	IsAdmin bool
	Plan    domain.Plan
}

// PrincipalFromUser builds the principal for an authenticated user row.
func PrincipalFromUser(u *domain.User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin, Plan: u.Plan}
}

type principalKey struct{}

// WithPrincipal returns a child context carrying p. It is called once per
// request, right after the guard has verified the token against storage.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok {
		return Principal{}, apperr.ErrUnauthenticated
	}
	return p, nil
}
