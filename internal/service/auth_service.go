package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/mailer"
	"fitshare/fitness-api/internal/queue"
	"fitshare/fitness-api/internal/repository"
)

const minPasswordLength = 8

var (
	errBadCredentials   = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	errBadConfirmation  = fmt.Errorf("%w: invalid or expired confirmation token", ErrValidation)
	errSessionNotActive = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
)

// AuthOptions carries the token lifetimes and signup mail settings.
type AuthOptions struct {
	AccessTTL     time.Duration
	VerifyTTL     time.Duration
	BcryptCost    int
	AppBaseURL    string
	EmailQueue    string
	SignupSubject string
}

// Session is the outcome of a login or refresh.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService interface {
	Signup(ctx context.Context, email, password string) (*domain.User, error)
	ConfirmEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	// Refresh and Logout act on the principal in ctx.
	Refresh(ctx context.Context) (*Session, error)
	Logout(ctx context.Context) error
	// Authenticate is the guard: it verifies raw against storage and
	// returns the principal to install in the request context.
	Authenticate(ctx context.Context, rawToken string) (auth.Principal, error)
}

// authService implements the AuthService interface.
type authService struct {
	store    repository.Store
	tokens   *auth.TokenManager
	enqueuer queue.Enqueuer
	opts     AuthOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(store repository.Store, tokens *auth.TokenManager, enqueuer queue.Enqueuer, opts AuthOptions, logger *zap.Logger) AuthService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.VerifyTTL <= 0 {
		opts.VerifyTTL = 30 * time.Minute
	}
	return &authService{
		store:    store,
		tokens:   tokens,
		enqueuer: enqueuer,
		opts:     opts,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("invalid email address")
	}
	return email, nil
}

// Signup registers an unconfirmed free-plan user and queues the
// confirmation email. Queue failures are logged only.
func (s *authService) Signup(ctx context.Context, email, password string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.store.Users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, repoErr(err, "user")
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash password", ErrUnexpected)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		Plan:         domain.PlanFree,
	}
	if _, err := s.store.Users.Create(ctx, user); err != nil {
		// lost the race against a concurrent signup; the unique index decides
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return nil, repoErr(err, "user")
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))

	s.sendConfirmation(ctx, user)
	return user, nil
}

func (s *authService) sendConfirmation(ctx context.Context, user *domain.User) {
	token, _, err := s.tokens.Issue(user.ID, auth.KindEmailVerify, s.opts.VerifyTTL)
	if err != nil {
		s.logger.Error("failed to issue confirmation token", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return
	}
	payload := mailer.SignupConfirmation{
		BaseURL:    s.opts.AppBaseURL,
		Token:      token,
		TTLMinutes: int(s.opts.VerifyTTL / time.Minute),
		EmailTo:    user.Email,
		Subject:    s.opts.SignupSubject,
	}
	taskID, err := s.enqueuer.Enqueue(ctx, mailer.TaskSignupConfirmation, payload, s.opts.EmailQueue)
	if err != nil {
		s.logger.Error("failed to enqueue confirmation email",
			zap.String("user_id", user.ID.Hex()),
			zap.Error(err))
		return
	}
	s.logger.Debug("confirmation email enqueued", zap.String("task_id", taskID))
}

// ConfirmEmail marks the token's user as confirmed. Confirming twice is fine.
func (s *authService) ConfirmEmail(ctx context.Context, token string) error {
	// The token is not consumed: it stays usable until it expires, and a
	// second confirmation is a no-op.
	payload, err := s.tokens.Verify(token)
	if err != nil || payload.Kind != auth.KindEmailVerify {
		return errBadConfirmation
	}
	user, err := s.store.Users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errBadConfirmation
		}
		return repoErr(err, "user")
	}
	if user.IsConfirmed {
		return nil
	}
	if err := s.store.Users.SetConfirmed(ctx, user.ID); err != nil {
		return repoErr(err, "user")
	}
	s.logger.Info("email confirmed", zap.String("user_id", user.ID.Hex()))
	return nil
}

// Login checks the credentials and returns the user's live access token,
// creating or replacing it when there is none or it has lapsed.
func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errBadCredentials
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, repoErr(err, "user")
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, errBadCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", ErrUnauthenticated)
	}

	stored, err := s.store.Tokens.GetByUserID(ctx, user.ID)
	switch {
	case err == nil && !stored.Expired(s.now()):
		return &Session{Token: stored.Token, ExpiresAt: stored.ExpiresAt, User: user}, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, repoErr(err, "token")
	}
	return s.issueSession(ctx, user)
}

func (s *authService) issueSession(ctx context.Context, user *domain.User) (*Session, error) {
	raw, expiresAt, err := s.tokens.Issue(user.ID, auth.KindAccess, s.opts.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate authentication token", ErrUnexpected)
	}
	token := &domain.AuthToken{
		UserID:    user.ID,
		Token:     raw,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Tokens.Save(ctx, token); err != nil {
		return nil, repoErr(err, "token")
	}
	s.logger.Info("access token issued", zap.String("user_id", user.ID.Hex()))
	return &Session{Token: raw, ExpiresAt: expiresAt, User: user}, nil
}

func (s *authService) Refresh(ctx context.Context) (*Session, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, repoErr(err, "user")
	}
	return s.issueSession(ctx, user)
}

func (s *authService) Logout(ctx context.Context) error {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Tokens.DeleteByUserID(ctx, p.UserID); err != nil {
		return repoErr(err, "token")
	}
	s.logger.Info("logged out", zap.String("user_id", p.UserID.Hex()))
	return nil
}

func (s *authService) Authenticate(ctx context.Context, rawToken string) (auth.Principal, error) {
	if rawToken == "" {
		return auth.Principal{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	payload, err := s.tokens.Verify(rawToken)
	if errors.Is(err, auth.ErrExpiredToken) {
		s.purgeIfStored(ctx, payload.UserID, rawToken)
		return auth.Principal{}, errSessionNotActive
	}
	if err != nil || payload.Kind != auth.KindAccess {
		return auth.Principal{}, errSessionNotActive
	}

	user, err := s.store.Users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.Principal{}, errSessionNotActive
		}
		return auth.Principal{}, repoErr(err, "user")
	}

	stored, err := s.store.Tokens.GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.Principal{}, errSessionNotActive
		}
		return auth.Principal{}, repoErr(err, "token")
	}
	if stored.Token != rawToken {
		return auth.Principal{}, errSessionNotActive
	}
	if stored.Expired(s.now()) {
		s.purgeIfStored(ctx, user.ID, rawToken)
		return auth.Principal{}, errSessionNotActive
	}

	if !user.CanAuthenticate() {
		return auth.Principal{}, fmt.Errorf("%w: account is inactive or email is not confirmed", ErrUnauthenticated)
	}
	return auth.PrincipalFromUser(user), nil
}

// purgeIfStored drops the user's stored token when it is raw. A newer
// token issued in the meantime is left alone.
func (s *authService) purgeIfStored(ctx context.Context, userID primitive.ObjectID, raw string) {
	stored, err := s.store.Tokens.GetByUserID(ctx, userID)
	if err != nil || stored.Token != raw {
		return
	}
	if err := s.store.Tokens.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Warn("failed to purge expired token", zap.String("user_id", userID.Hex()), zap.Error(err))
		return
	}
	s.logger.Debug("purged expired token", zap.String("user_id", userID.Hex()))
}
