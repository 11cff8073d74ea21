package auth

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
)

// RequireAdmin fails with Forbidden unless p is an administrator.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin {
		return fmt.Errorf("%w: administrator role required", apperr.ErrForbidden)
	}
	return nil
}

// EffectiveActor resolves the user id a write is performed for. Admins may
// name any target; everyone else acts as themselves and may only name their
// own id.
func EffectiveActor(p Principal, target *primitive.ObjectID) (primitive.ObjectID, error) {
	if target == nil || target.IsZero() || *target == p.UserID {
		return p.UserID, nil
	}
	if !p.IsAdmin {
		return primitive.NilObjectID, fmt.Errorf("%w: cannot act on behalf of another user", apperr.ErrForbidden)
	}
	return *target, nil
}

// MayBypassQuota reports whether p is exempt from creation quotas for
// exercises, workouts and groups. Administrators create without limits.
func MayBypassQuota(p Principal) bool {
	return p.IsAdmin
}

// CanAccessOwned reports whether p may read or write a row owned by ownerID.
func CanAccessOwned(p Principal, ownerID primitive.ObjectID) bool {
	return p.IsAdmin || p.UserID == ownerID
}
