package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan is the subscription tier that decides quota ceilings.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// User represents an account. Email is unique across the system.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	IsAdmin      bool               `bson:"isAdmin" json:"isAdmin"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	IsConfirmed  bool               `bson:"isConfirmed" json:"isConfirmed"`
	Plan         Plan               `bson:"plan" json:"plan"`

	// --- Profile ---
	FirstName string     `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string     `bson:"lastName,omitempty" json:"lastName,omitempty"`
	BirthDate *time.Time `bson:"birthDate,omitempty" json:"birthDate,omitempty"`

	// Bumped inside every quota-checked transaction so that concurrent
	// creates for the same owner conflict instead of both passing the count.
	QuotaVersion int64 `bson:"quotaVersion" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// CanAuthenticate reports whether the account may pass the authorization guard.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && u.IsConfirmed
}

// ProfileUpdate carries the self-service profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	BirthDate *time.Time
}

// AdminUserUpdate carries the fields only an administrator may change.
type AdminUserUpdate struct {
	ProfileUpdate
	Email       *string
	Plan        *Plan
	IsActive    *bool
	IsConfirmed *bool
	IsAdmin     *bool
}

// AuthToken is the single live access token of a user.
type AuthToken struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Token     string             `bson:"token" json:"token"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the embedded limit has passed at now.
func (t *AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
