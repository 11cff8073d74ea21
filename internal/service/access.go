package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
)

// actor resolves the caller and the user a request acts for.
func actor(ctx context.Context, target *primitive.ObjectID) (auth.Principal, primitive.ObjectID, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return auth.Principal{}, primitive.NilObjectID, err
	}
	owner, err := auth.EffectiveActor(p, target)
	if err != nil {
		return auth.Principal{}, primitive.NilObjectID, err
	}
	return p, owner, nil
}

// quotaGate runs the owner-scoped part of every quota-checked create.
type quotaGate struct {
	users  repository.UserRepository
	limits *quota.Table
}

// reserve must be called inside a transaction before the insert. It locks
// the owner's quota row, then counts existing resources against the plan
// of the owner. The lock is taken even for callers that bypass the check
// so that the owner row is known to exist.
func (g quotaGate) reserve(ctx context.Context, p auth.Principal, ownerID primitive.ObjectID, r domain.Resource,
	count func(ctx context.Context) (int64, error)) error {
	if err := g.users.LockQuota(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user")
		}
		return err
	}
	if auth.MayBypassQuota(p) {
		return nil
	}
	owner, err := g.users.GetByID(ctx, ownerID)
	if err != nil {
		return repoErr(err, "user")
	}
	n, err := count(ctx)
	if err != nil {
		return err
	}
	return g.limits.Enforce(owner.Plan, r, n)
}

// memberCeiling checks that adding extra members to a group owned by ownerID
// stays within the owner's plan. Nobody bypasses it.
func (g quotaGate) memberCeiling(ctx context.Context, ownerID primitive.ObjectID, existing int64, extra int) error {
	owner, err := g.users.GetByID(ctx, ownerID)
	if err != nil {
		return repoErr(err, "group owner")
	}
	// Enforce admits one more row; ask about the last slot the batch takes.
	return g.limits.Enforce(owner.Plan, domain.ResourceMember, existing+int64(extra)-1)
}

func pageOf[T any](items []T, total int64, page domain.PageRequest) *domain.Page[T] {
	return &domain.Page[T]{Items: items, Meta: domain.NewPageMeta(total, page.Normalize())}
}
