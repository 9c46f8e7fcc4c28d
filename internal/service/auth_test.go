package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
	"github.com/Skotchmaster/quiz_platform/pkg/events"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authEnv struct {
	svc    *AuthService
	store  *fakeStore
	tokens *tokens.Service
	pub    *fakePublisher
	clock  *testClock
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	clock := newTestClock()
	ts := tokens.NewService(testTokenConfig(), tokens.WithClock(clock.Now))
	store := newFakeStore()
	pub := &fakePublisher{}

	return &authEnv{
		svc: &AuthService{
			Repo:   store,
			Tokens: ts,
			Events: pub,
			Now:    clock.Now,
		},
		store:  store,
		tokens: ts,
		pub:    pub,
		clock:  clock,
	}
}

func (e *authEnv) login(email string, rememberMe bool) (*Session, error) {
	return e.svc.AuthenticateUser(context.Background(), transport.LoginRequest{
		Email:      email,
		Password:   testPassword,
		RememberMe: rememberMe,
	})
}

func requireKind(t *testing.T, err error, kind Kind) *AuthError {
	t.Helper()

	require.Error(t, err)
	var ae *AuthError
	require.True(t, errors.As(err, &ae), "expected *AuthError, got %T", err)
	require.Equal(t, kind, ae.Kind, "unexpected kind: %v", err)
	return ae
}

func TestAuthenticateUser_ActiveAccount(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now().AddDate(0, -2, 0))

	sess, err := env.login("PLAYER@example.com", false)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	assert.NotEqual(t, sess.AccessToken, sess.RefreshToken)
	assert.Equal(t, u.ID, sess.UserID)
	assert.Equal(t, models.RoleUser, sess.Role)

	access, err := env.tokens.Validate(sess.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, tokens.TypeAccess, access.Type)
	assert.Equal(t, "player@example.com", access.Email)
	assert.Equal(t, models.RoleUser, access.Role)

	refresh, err := env.tokens.Validate(sess.RefreshToken, true)
	require.NoError(t, err)
	assert.Equal(t, tokens.TypeRefresh, refresh.Type)
	assert.False(t, tokens.ExtractRememberMe(refresh))

	stored := env.store.get(u.ID)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(env.clock.Now()))
	assert.Equal(t, 1, env.store.saveCount())
	assert.Equal(t, []string{events.TypeUserLoggedIn}, env.pub.types())
}

func TestAuthenticateUser_LastLoginWithinCallWindow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	u := store.add(t, "wall@example.com", models.StatusActive, time.Now().UTC())
	svc := &AuthService{Repo: store, Tokens: tokens.NewService(testTokenConfig())}

	before := time.Now().UTC()
	_, err := svc.AuthenticateUser(context.Background(), transport.LoginRequest{Email: u.Email, Password: testPassword})
	after := time.Now().UTC()
	require.NoError(t, err)

	stored := store.get(u.ID)
	require.NotNil(t, stored.LastLogin)
	assert.False(t, stored.LastLogin.Before(before))
	assert.False(t, stored.LastLogin.After(after))
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "secret"},
		{name: "blank email", email: "   ", password: "secret"},
		{name: "empty password", email: "a@example.com", password: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newAuthEnv(t)
			sess, err := env.svc.AuthenticateUser(context.Background(), transport.LoginRequest{
				Email:    tt.email,
				Password: tt.password,
			})
			assert.Nil(t, sess)
			requireKind(t, err, KindInvalidCredentials)
		})
	}
}

func TestAuthenticateUser_AccountNotFound(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "gone@example.com", models.StatusActive, env.clock.Now())
	u.IsDeleted = true
	require.NoError(t, env.store.Save(context.Background(), &u))

	_, err := env.login("gone@example.com", false)
	requireKind(t, err, KindAccountNotFound)

	_, err = env.login("nobody@example.com", false)
	requireKind(t, err, KindAccountNotFound)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAuthenticateUser_Inactive(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.store.add(t, "idle@example.com", models.StatusInactive, env.clock.Now().AddDate(-1, 0, 0))

	_, err := env.login("idle@example.com", false)
	requireKind(t, err, KindAccountInactive)
	assert.Zero(t, env.store.saveCount())
}

func TestAuthenticateUser_SuspendedWithinWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ago       time.Duration
		remaining time.Duration
		message   string
	}{
		{name: "five days ago", ago: 5 * 24 * time.Hour, remaining: 25 * 24 * time.Hour, message: "25 days and 0 hours"},
		{name: "just suspended", ago: 0, remaining: 30 * 24 * time.Hour, message: "30 days and 0 hours"},
		{name: "partial hours", ago: 10*24*time.Hour + 5*time.Hour, remaining: 19*24*time.Hour + 19*time.Hour, message: "19 days and 19 hours"},
		{name: "one minute left", ago: SuspensionPeriod - time.Minute, remaining: time.Minute, message: "0 days and 1 hours"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newAuthEnv(t)
			u := env.store.add(t, "banned@example.com", models.StatusSuspended, env.clock.Now().Add(-tt.ago))

			sess, err := env.login("banned@example.com", false)
			assert.Nil(t, sess)
			ae := requireKind(t, err, KindAccountSuspended)
			assert.Equal(t, tt.remaining, ae.Remaining)
			assert.Contains(t, ae.Message(), tt.message)
			assert.ErrorIs(t, err, ErrAccountSuspended)

			assert.Equal(t, models.StatusSuspended, env.store.get(u.ID).Status)
			assert.Zero(t, env.store.saveCount())
		})
	}
}

// Login reactivates an account whose suspension has run out. This is
// intended behaviour, not a leak of a read path into a write.
func TestAuthenticateUser_SuspensionElapsedReactivates(t *testing.T) {
	t.Parallel()

	for _, ago := range []time.Duration{SuspensionPeriod, SuspensionPeriod + time.Hour, 90 * 24 * time.Hour} {
		ago := ago
		t.Run(ago.String(), func(t *testing.T) {
			t.Parallel()

			env := newAuthEnv(t)
			idx := newFakeIndex()
			env.svc.Index = idx
			u := env.store.add(t, "back@example.com", models.StatusSuspended, env.clock.Now().Add(-ago))

			sess, err := env.login("back@example.com", false)
			require.NoError(t, err)
			require.NotNil(t, sess)

			stored := env.store.get(u.ID)
			assert.Equal(t, models.StatusActive, stored.Status)
			require.NotNil(t, stored.LastLogin)
			assert.ElementsMatch(t, []string{events.TypeUserLoggedIn, events.TypeAccountReactivated}, env.pub.types())
			assert.Equal(t, models.StatusActive, idx.statusOf(u.ID))
		})
	}
}

func TestAuthenticateUser_ElapsedSuspensionWrongPasswordStaysSuspended(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	idx := newFakeIndex()
	env.svc.Index = idx
	u := env.store.add(t, "back@example.com", models.StatusSuspended, env.clock.Now().Add(-SuspensionPeriod-time.Hour))

	_, err := env.svc.AuthenticateUser(context.Background(), transport.LoginRequest{Email: u.Email, Password: "wrong-password"})
	requireKind(t, err, KindInvalidPassword)
	assert.Equal(t, models.StatusSuspended, env.store.get(u.ID).Status)
	assert.Empty(t, env.pub.types())
	assert.Empty(t, idx.statusOf(u.ID))
}

func TestAuthenticateUser_WrongPasswordIsRepeatable(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	req := transport.LoginRequest{Email: u.Email, Password: "not-the-password"}

	_, err1 := env.svc.AuthenticateUser(context.Background(), req)
	_, err2 := env.svc.AuthenticateUser(context.Background(), req)

	requireKind(t, err1, KindInvalidPassword)
	requireKind(t, err2, KindInvalidPassword)
	assert.Nil(t, env.store.get(u.ID).LastLogin)
	assert.Zero(t, env.store.saveCount())
}

func TestAuthenticateUser_MissingConfiguration(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	cfg := testTokenConfig()
	cfg.SigningKey = nil
	env.svc.Tokens = tokens.NewService(cfg)

	_, err := env.login("player@example.com", false)
	requireKind(t, err, KindConfiguration)
	assert.ErrorIs(t, err, tokens.ErrConfiguration)
	assert.Zero(t, env.store.saveCount())
}

type emptyTokens struct{ TokenService }

func (emptyTokens) IssueAccessToken(*tokens.Identity) (string, error) { return "", nil }

func TestAuthenticateUser_EmptyTokenIsIssuanceError(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	env.svc.Tokens = emptyTokens{TokenService: env.tokens}

	_, err := env.login("player@example.com", false)
	requireKind(t, err, KindTokenIssuance)
	assert.Zero(t, env.store.saveCount())
}

func TestAuthenticateUser_SaveFailure(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	env.store.saveErr = errors.New("db down")

	sess, err := env.login("player@example.com", false)
	assert.Nil(t, sess)
	requireKind(t, err, KindInternal)
}

func TestAuthenticateUser_PublishFailureDoesNotFailLogin(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	env.pub.err = errors.New("broker down")

	sess, err := env.login("player@example.com", false)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
}

func TestRefreshSession_ValidToken(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	first, err := env.login(u.Email, false)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	sess, err := env.svc.RefreshSession(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	assert.NotEqual(t, first.RefreshToken, sess.RefreshToken)

	refresh, err := env.tokens.Validate(sess.RefreshToken, true)
	require.NoError(t, err)
	assert.False(t, tokens.ExtractRememberMe(refresh))
	assert.Equal(t, "1", tokens.ExtractAccountID(refresh))

	stored := env.store.get(u.ID)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(env.clock.Now()))
}

func TestRefreshSession_ExpiredWithoutRememberMe(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	first, err := env.login(u.Email, false)
	require.NoError(t, err)
	saves := env.store.saveCount()

	env.clock.Advance(8 * 24 * time.Hour)
	sess, err := env.svc.RefreshSession(context.Background(), first.RefreshToken)
	assert.Nil(t, sess)
	requireKind(t, err, KindSessionExpired)
	assert.False(t, errors.Is(err, ErrInvalidToken))
	assert.Equal(t, saves, env.store.saveCount())
}

func TestRefreshSession_ExpiredWithRememberMe(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	first, err := env.login(u.Email, true)
	require.NoError(t, err)

	env.clock.Advance(8 * 24 * time.Hour)
	sess, err := env.svc.RefreshSession(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	access, err := env.tokens.Validate(sess.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, "1", tokens.ExtractAccountID(access))

	refresh, err := env.tokens.Validate(sess.RefreshToken, true)
	require.NoError(t, err)
	assert.True(t, tokens.ExtractRememberMe(refresh))
}

func TestRefreshSession_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	sess, err := env.login(u.Email, false)
	require.NoError(t, err)

	otherCfg := testTokenConfig()
	otherCfg.SigningKey = []byte("someone-else")
	foreign, err := tokens.NewService(otherCfg).IssueRefreshToken(&tokens.Identity{ID: u.ID}, true)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  Kind
	}{
		{name: "empty", token: "", kind: KindMissingToken},
		{name: "whitespace", token: "  ", kind: KindMissingToken},
		{name: "garbage", token: "not.a.jwt", kind: KindInvalidToken},
		{name: "access token", token: sess.AccessToken, kind: KindInvalidToken},
		{name: "wrong key", token: foreign, kind: KindInvalidToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := env.svc.RefreshSession(context.Background(), tt.token)
			assert.Nil(t, out)
			requireKind(t, err, tt.kind)
		})
	}
}

func signRefresh(t *testing.T, subject string) string {
	t.Helper()

	cfg := testTokenConfig()
	claims := tokens.Claims{
		Type: tokens.TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(newTestClock().Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	require.NoError(t, err)
	return signed
}

func TestRefreshSession_InvalidAccountID(t *testing.T) {
	t.Parallel()

	for _, sub := range []string{"", "abc", "-1", "0"} {
		sub := sub
		t.Run("sub="+sub, func(t *testing.T) {
			t.Parallel()

			env := newAuthEnv(t)
			_, err := env.svc.RefreshSession(context.Background(), signRefresh(t, sub))
			requireKind(t, err, KindInvalidAccountID)
		})
	}
}

func TestRefreshSession_AccountStatus(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	_, err := env.svc.RefreshSession(ctx, signRefresh(t, "42"))
	requireKind(t, err, KindAccountNotFound)

	idle := env.store.add(t, "idle@example.com", models.StatusInactive, env.clock.Now())
	_, err = env.svc.RefreshSession(ctx, signRefresh(t, "1"))
	require.Equal(t, uint(1), idle.ID)
	requireKind(t, err, KindAccountInactive)
}

func TestRefreshSession_SuspendedKeepsTokenUsable(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()
	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	sess, err := env.login(u.Email, false)
	require.NoError(t, err)

	suspendedUser := env.store.get(u.ID)
	suspendedUser.Status = models.StatusSuspended
	suspendedUser.LastModified = env.clock.Now()
	require.NoError(t, env.store.Save(ctx, &suspendedUser))

	_, err = env.svc.RefreshSession(ctx, sess.RefreshToken)
	ae := requireKind(t, err, KindAccountSuspended)
	assert.Equal(t, SuspensionPeriod, ae.Remaining)

	lifted := env.store.get(u.ID)
	lifted.Status = models.StatusActive
	require.NoError(t, env.store.Save(ctx, &lifted))

	_, err = env.svc.RefreshSession(ctx, sess.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshSession_SuspensionElapsedReactivates(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.RefreshLifetime = 60 * 24 * time.Hour
	env := newAuthEnv(t)
	env.tokens = tokens.NewService(cfg, tokens.WithClock(env.clock.Now))
	env.svc.Tokens = env.tokens
	ctx := context.Background()

	u := env.store.add(t, "player@example.com", models.StatusActive, env.clock.Now())
	sess, err := env.login(u.Email, false)
	require.NoError(t, err)

	banned := env.store.get(u.ID)
	banned.Status = models.StatusSuspended
	banned.LastModified = env.clock.Now()
	require.NoError(t, env.store.Save(ctx, &banned))

	idx := newFakeIndex()
	env.svc.Index = idx

	env.clock.Advance(SuspensionPeriod)
	_, err = env.svc.RefreshSession(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, env.store.get(u.ID).Status)
	assert.Equal(t, models.StatusActive, idx.statusOf(u.ID))
	assert.Contains(t, env.pub.types(), events.TypeAccountReactivated)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	idx := newFakeIndex()
	env.svc.Index = idx
	ctx := context.Background()

	u, err := env.svc.Register(ctx, transport.RegisterRequest{
		Email:    " New@Example.com ",
		FullName: "New Player",
		Password: "long-enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, models.StatusActive, u.Status)
	assert.Equal(t, models.RoleUser, u.Role.Name)
	assert.Equal(t, "new@example.com", idx.indexed[u.ID])
	assert.Equal(t, []string{events.TypeUserRegistered, "email:welcome"}, env.pub.types())

	sess, err := env.svc.AuthenticateUser(ctx, transport.LoginRequest{Email: "new@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)

	_, err = env.svc.Register(ctx, transport.RegisterRequest{Email: "NEW@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  transport.RegisterRequest
	}{
		{name: "empty email", req: transport.RegisterRequest{Password: "long-enough"}},
		{name: "no at sign", req: transport.RegisterRequest{Email: "player", Password: "long-enough"}},
		{name: "short password", req: transport.RegisterRequest{Email: "a@example.com", Password: "short"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newAuthEnv(t)
			_, err := env.svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
