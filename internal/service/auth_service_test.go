package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/mailer"
)

func confirmationToken(t *testing.T, q *fakeQueue) string {
	t.Helper()
	require.NotEmpty(t, q.tasks)
	last := q.tasks[len(q.tasks)-1]
	require.Equal(t, mailer.TaskSignupConfirmation, last.task)
	payload, ok := last.payload.(mailer.SignupConfirmation)
	require.True(t, ok)
	return payload.Token
}

func TestSignupConfirmAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.auth.Signup(ctx, "Alice@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsConfirmed)
	assert.True(t, user.IsActive)
	assert.Equal(t, domain.PlanFree, user.Plan)

	require.Len(t, e.queue.tasks, 1)
	task := e.queue.tasks[0]
	assert.Equal(t, "email", task.queue)
	payload := task.payload.(mailer.SignupConfirmation)
	assert.Equal(t, "alice@example.com", payload.EmailTo)
	assert.Equal(t, 30, payload.TTLMinutes)
	assert.Equal(t, "http://localhost:8080", payload.BaseURL)

	// an unconfirmed user may log in but cannot pass the guard
	session, err := e.auth.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	_, err = e.auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, e.auth.ConfirmEmail(ctx, payload.Token))
	require.NoError(t, e.auth.ConfirmEmail(ctx, payload.Token), "confirming twice is harmless")

	p, err := e.auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	again, err := e.auth.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, session.Token, again.Token, "a live token is returned unchanged")
}

func TestSignupRejectsDuplicatesAndBadInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.auth.Signup(ctx, "bob@example.com", "password1")
	require.NoError(t, err)
	_, err = e.auth.Signup(ctx, "BOB@example.com", "password2")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.auth.Signup(ctx, "not-an-email", "password1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.auth.Signup(ctx, "carol@example.com", "short")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignupSurvivesQueueOutage(t *testing.T) {
	e := newEnv(t)
	e.queue.err = errors.New("redis down")

	user, err := e.auth.Signup(context.Background(), "dave@example.com", "password1")
	require.NoError(t, err)

	stored, err := e.store.Users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", stored.Email)
}

func TestConfirmEmailRejectsWrongTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.auth.Signup(ctx, "erin@example.com", "password1")
	require.NoError(t, err)

	assert.ErrorIs(t, e.auth.ConfirmEmail(ctx, "garbage"), ErrValidation)

	// an access token is not a confirmation token
	session, err := e.auth.Login(ctx, "erin@example.com", "password1")
	require.NoError(t, err)
	err = e.auth.ConfirmEmail(ctx, session.Token)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "invalid or expired confirmation token")
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.auth.Signup(ctx, "frank@example.com", "password1")
	require.NoError(t, err)

	_, errUnknown := e.auth.Login(ctx, "nobody@example.com", "password1")
	_, errWrong := e.auth.Login(ctx, "frank@example.com", "password2")
	assert.ErrorIs(t, errUnknown, ErrUnauthenticated)
	assert.ErrorIs(t, errWrong, ErrUnauthenticated)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	u, err := e.store.Users.GetByEmail(ctx, "frank@example.com")
	require.NoError(t, err)
	inactive := false
	require.NoError(t, e.store.Users.UpdateAdmin(ctx, u.ID, domain.AdminUserUpdate{IsActive: &inactive}))
	_, err = e.auth.Login(ctx, "frank@example.com", "password1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func signupConfirmed(t *testing.T, e *env, email string) *Session {
	t.Helper()
	ctx := context.Background()
	_, err := e.auth.Signup(ctx, email, "password1")
	require.NoError(t, err)
	require.NoError(t, e.auth.ConfirmEmail(ctx, confirmationToken(t, e.queue)))
	session, err := e.auth.Login(ctx, email, "password1")
	require.NoError(t, err)
	return session
}

func TestAuthenticateRejectsRevokedAndForeignTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := signupConfirmed(t, e, "gina@example.com")

	_, err := e.auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// validly signed but never stored
	forged, _, err := e.tokens.Issue(session.User.ID, auth.KindAccess, 2*time.Hour)
	require.NoError(t, err)
	_, err = e.auth.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// wrong kind
	verify, _, err := e.tokens.Issue(session.User.ID, auth.KindEmailVerify, time.Minute)
	require.NoError(t, err)
	_, err = e.auth.Authenticate(ctx, verify)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	pctx := auth.WithPrincipal(ctx, auth.PrincipalFromUser(session.User))
	require.NoError(t, e.auth.Logout(pctx))
	_, err = e.auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticatePurgesLapsedToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := signupConfirmed(t, e, "hank@example.com")

	svc := e.auth.(*authService)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := e.auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = e.store.Tokens.GetByUserID(ctx, session.User.ID)
	assert.Error(t, err, "lapsed token is purged")

	// the next login replaces it
	fresh, err := e.auth.Login(ctx, "hank@example.com", "password1")
	require.NoError(t, err)
	stored, err := e.store.Tokens.GetByUserID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.Token, stored.Token)
}

func TestRefreshReplacesStoredToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := signupConfirmed(t, e, "iris@example.com")

	pctx := auth.WithPrincipal(ctx, auth.PrincipalFromUser(session.User))
	time.Sleep(1100 * time.Millisecond) // tokens have second resolution
	refreshed, err := e.auth.Refresh(pctx)
	require.NoError(t, err)
	assert.NotEqual(t, session.Token, refreshed.Token)

	_, err = e.auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = e.auth.Authenticate(ctx, refreshed.Token)
	assert.NoError(t, err)

	_, err = e.auth.Refresh(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
