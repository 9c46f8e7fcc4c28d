package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/metrics"
	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/Skotchmaster/quiz_platform/internal/repo"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
	"github.com/Skotchmaster/quiz_platform/pkg/events"
	pkg_hash "github.com/Skotchmaster/quiz_platform/pkg/hash"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
)

// AccountStore is what login and refresh need from persistence.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string, excludeDeleted bool) (*models.User, error)
	FindByID(ctx context.Context, id uint, excludeDeleted bool) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
}

type AuthStore interface {
	AccountStore
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
}

type TokenService interface {
	IssueAccessToken(id *tokens.Identity) (string, error)
	IssueRefreshToken(id *tokens.Identity, rememberMe bool) (string, error)
	Validate(token string, checkExpiry bool) (*tokens.Claims, error)
}

type AuthService struct {
	Repo    AuthStore
	Tokens  TokenService
	Events  events.Publisher
	Index   UserIndex
	Metrics *metrics.Metrics
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// Session is the successful outcome of login and refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       uint
	Role         string
}

const minPasswordLen = 8

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// AuthenticateUser verifies credentials and issues a token pair.
//
// Logging in to a suspended account whose suspension window has elapsed
// reactivates it. The status change is saved together with last_login and
// only when the login succeeds.
func (s *AuthService) AuthenticateUser(ctx context.Context, req transport.LoginRequest) (*Session, error) {
	sess, err := s.authenticate(ctx, req)
	s.observe("login", err)
	return sess, err
}

func (s *AuthService) authenticate(ctx context.Context, req transport.LoginRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, newAuthError(KindInvalidCredentials, nil)
	}

	user, err := s.Repo.FindByEmail(ctx, email, true)
	if err != nil {
		return nil, lookupError(err)
	}

	now := s.now()
	reactivated, err := checkStatus(user, now)
	if err != nil {
		return nil, err
	}

	if !pkg_hash.CheckPassword(user.PasswordHash, req.Password) {
		return nil, newAuthError(KindInvalidPassword, nil)
	}

	sess, err := s.issue(user, req.RememberMe)
	if err != nil {
		return nil, err
	}

	if err := s.touch(ctx, user, now); err != nil {
		return nil, err
	}

	if reactivated {
		s.reactivated(ctx, user, now)
	}
	s.publish(ctx, events.TopicUserEvents, user, events.UserEvent{
		Type:       events.TypeUserLoggedIn,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	})
	return sess, nil
}

// RefreshSession exchanges a refresh token for a new pair. An expired token is
// renewed only when it was issued with remember-me.
//
// A suspension error leaves the presented token untouched; it stays usable
// until it expires on its own.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	sess, err := s.refresh(ctx, refreshToken)
	s.observe("refresh", err)
	return sess, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, newAuthError(KindMissingToken, nil)
	}

	expired := false
	claims, err := s.Tokens.Validate(refreshToken, true)
	if errors.Is(err, tokens.ErrExpiredToken) {
		expired = true
		claims, err = s.Tokens.Validate(refreshToken, false)
	}
	if err != nil {
		if errors.Is(err, tokens.ErrConfiguration) {
			return nil, newAuthError(KindConfiguration, err)
		}
		return nil, newAuthError(KindInvalidToken, err)
	}
	if claims == nil || claims.Type != tokens.TypeRefresh {
		return nil, newAuthError(KindInvalidToken, nil)
	}

	id, err := strconv.ParseUint(tokens.ExtractAccountID(claims), 10, 64)
	if err != nil || id == 0 {
		return nil, newAuthError(KindInvalidAccountID, err)
	}

	user, err := s.Repo.FindByID(ctx, uint(id), true)
	if err != nil {
		return nil, lookupError(err)
	}

	now := s.now()
	reactivated, err := checkStatus(user, now)
	if err != nil {
		return nil, err
	}

	rememberMe := tokens.ExtractRememberMe(claims)
	if expired && !rememberMe {
		return nil, newAuthError(KindSessionExpired, nil)
	}

	sess, err := s.issue(user, rememberMe)
	if err != nil {
		return nil, err
	}

	if err := s.touch(ctx, user, now); err != nil {
		return nil, err
	}
	if reactivated {
		s.reactivated(ctx, user, now)
	}
	return sess, nil
}

// Register creates an active account with the user role.
func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email required", ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	role, err := s.Repo.RoleByName(ctx, models.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}

	pwHash, err := pkg_hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: pwHash,
		Status:       models.StatusActive,
		RoleID:       role.ID,
		LastModified: now,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}
	user.Role = *role

	indexUser(ctx, s.Index, user)
	s.publish(ctx, events.TopicUserEvents, user, events.UserEvent{
		Type:       events.TypeUserRegistered,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	})
	s.publish(ctx, events.TopicEmailEvents, user, events.EmailRequest{
		Template: "welcome",
		To:       user.Email,
		Params:   map[string]string{"full_name": user.FullName},
	})

	l.Info("register_successful", "user_id", user.ID)
	return user, nil
}

// checkStatus rejects inactive and still-suspended accounts. An expired
// suspension flips the in-memory status to active and reports true.
func checkStatus(user *models.User, now time.Time) (bool, error) {
	switch user.Status {
	case models.StatusActive:
		return false, nil
	case models.StatusInactive:
		return false, newAuthError(KindAccountInactive, nil)
	case models.StatusSuspended:
		remaining := SuspensionPeriod - now.Sub(user.LastModified)
		if remaining > 0 {
			return false, suspended(remaining)
		}
		user.Status = models.StatusActive
		return true, nil
	default:
		return false, newAuthError(KindInternal, fmt.Errorf("unknown account status %q", user.Status))
	}
}

func lookupError(err error) error {
	if errors.Is(err, repo.ErrUserNotFound) {
		return newAuthError(KindAccountNotFound, nil)
	}
	return newAuthError(KindInternal, err)
}

func (s *AuthService) issue(user *models.User, rememberMe bool) (*Session, error) {
	id := &tokens.Identity{ID: user.ID, Email: user.Email, Role: user.Role.Name}

	access, err := s.Tokens.IssueAccessToken(id)
	if err != nil {
		return nil, issueError(err)
	}
	refresh, err := s.Tokens.IssueRefreshToken(id, rememberMe)
	if err != nil {
		return nil, issueError(err)
	}
	if access == "" || refresh == "" {
		return nil, newAuthError(KindTokenIssuance, errors.New("empty token"))
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		Role:         user.Role.Name,
	}, nil
}

func issueError(err error) error {
	if errors.Is(err, tokens.ErrConfiguration) {
		return newAuthError(KindConfiguration, err)
	}
	return newAuthError(KindTokenIssuance, err)
}

func (s *AuthService) touch(ctx context.Context, user *models.User, now time.Time) error {
	user.LastLogin = &now
	if err := s.Repo.Save(ctx, user); err != nil {
		return newAuthError(KindInternal, fmt.Errorf("save account: %w", err))
	}
	return nil
}

func (s *AuthService) reactivated(ctx context.Context, user *models.User, now time.Time) {
	logging.FromContext(ctx).Info("account_reactivated", "user_id", user.ID)
	s.Metrics.ObserveReactivation()
	indexUser(ctx, s.Index, user)
	s.publish(ctx, events.TopicUserEvents, user, events.UserEvent{
		Type:       events.TypeAccountReactivated,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	})
}

func (s *AuthService) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.Metrics.ObserveAuth(operation, outcome)
}

// publish logs delivery failures and never returns them.
func (s *AuthService) publish(ctx context.Context, topic string, user *models.User, event any) {
	publishEvent(ctx, s.Events, topic, user.ID, event)
}

func publishEvent(ctx context.Context, p events.Publisher, topic string, userID uint, event any) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	key := strconv.FormatUint(uint64(userID), 10)
	if err := p.PublishEvent(pubCtx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "user_id", userID, "error", err)
	}
}
