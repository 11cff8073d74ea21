package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenKind distinguishes single-purpose tokens from session tokens.
type TokenKind string

const (
	KindEmailVerify TokenKind = "email_verify"
	KindAccess      TokenKind = "access"
)

const issuer = "fitness-api"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Payload is the verified content of a token.
type Payload struct {
	UserID    primitive.ObjectID
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	UserID string    `json:"uid"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 signed tokens. It holds no state
// besides the secret; revocation is checked elsewhere against storage.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager panics on an empty secret.
func NewTokenManager(secret string) *TokenManager {
	if secret == "" {
		panic("JWT secret cannot be empty")
	}
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue signs a token of kind for userID that expires after ttl.
func (m *TokenManager) Issue(userID primitive.ObjectID, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := m.now().UTC()
	// JWT timestamps have second precision. Round the expiry up so a token
	// is never valid for less than ttl and the returned value matches what
	// Verify decodes.
	expiresAt := ceilSecond(now.Add(ttl))
	c := claims{
		UserID: userID.Hex(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); !down.Equal(t) {
		return down.Add(time.Second)
	}
	return t
}

// Verify checks signature, algorithm and structure of raw. It never touches
// storage. On ErrExpiredToken the decoded payload is returned alongside the
// error so callers can purge state tied to it.
func (m *TokenManager) Verify(raw string) (*Payload, error) {
	c := &claims{}
	parser := jwt.Parser{}
	_, err := parser.ParseWithClaims(raw, c, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	expired := false
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired {
			expired = true
		} else {
			return nil, ErrInvalidToken
		}
	}

	payload, perr := c.payload()
	if perr != nil {
		return nil, ErrInvalidToken
	}
	if expired {
		return payload, ErrExpiredToken
	}
	return payload, nil
}

func (c *claims) payload() (*Payload, error) {
	if c.Kind != KindAccess && c.Kind != KindEmailVerify {
		return nil, fmt.Errorf("unknown token kind %q", c.Kind)
	}
	if c.ExpiresAt == nil {
		return nil, errors.New("token has no expiry")
	}
	uid, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return nil, err
	}
	p := &Payload{UserID: uid, Kind: c.Kind, ExpiresAt: c.ExpiresAt.Time}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	return p, nil
}
