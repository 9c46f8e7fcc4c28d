package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/Skotchmaster/quiz_platform/internal/repo"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
	"github.com/Skotchmaster/quiz_platform/internal/util"
	"github.com/Skotchmaster/quiz_platform/pkg/events"
	pkg_hash "github.com/Skotchmaster/quiz_platform/pkg/hash"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
)

type UserStore interface {
	FindByID(ctx context.Context, id uint, excludeDeleted bool) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Save(ctx context.Context, u *models.User) error
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error)
	SearchUsers(ctx context.Context, q string, offset, limit int) (int64, []models.User, error)
}

// UserIndex is the full-text index over accounts. SearchUsers returns ids in
// relevance order.
type UserIndex interface {
	IndexUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uint) error
	SearchUsers(ctx context.Context, q string, offset, limit int) (int64, []uint, error)
}

// UserService backs the admin user-management endpoints.
type UserService struct {
	Repo   UserStore
	Index  UserIndex
	Events events.Publisher
	Now    func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *UserService) List(ctx context.Context, page, size int) (*transport.PagedUsers, error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &transport.PagedUsers{Items: items, Meta: util.Meta(page, size, total)}, nil
}

// Search prefers the index and falls back to a LIKE query when none is set.
func (s *UserService) Search(ctx context.Context, q string, page, size int) (*transport.PagedUsers, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: query required", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)

	if s.Index == nil {
		total, items, err := s.Repo.SearchUsers(ctx, q, offset, limit)
		if err != nil {
			return nil, err
		}
		return &transport.PagedUsers{Items: items, Meta: util.Meta(page, size, total)}, nil
	}

	total, ids, err := s.Index.SearchUsers(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	found, err := s.Repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	items := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			items = append(items, u)
		}
	}
	return &transport.PagedUsers{Items: items, Meta: util.Meta(page, size, total)}, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Repo.FindByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, req transport.CreateUserRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email required", ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	status := models.StatusActive
	if req.Status != "" {
		status = models.AccountStatus(strings.ToLower(req.Status))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
		}
	}

	roleName := req.Role
	if roleName == "" {
		roleName = models.RoleUser
	}
	role, err := s.role(ctx, roleName)
	if err != nil {
		return nil, err
	}

	pwHash, err := pkg_hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: pwHash,
		Status:       status,
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

	s.afterWrite(ctx, user, events.TypeUserCreated, now)
	return user, nil
}

// Update applies the non-nil fields. Any change bumps last_modified, which
// also restarts the suspension window of a suspended account.
func (s *UserService) Update(ctx context.Context, id uint, req transport.PatchUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLen {
			return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
		}
		pwHash, err := pkg_hash.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = pwHash
	}
	if req.Status != nil {
		status := models.AccountStatus(strings.ToLower(*req.Status))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		user.Status = status
	}
	if req.Role != nil {
		role, err := s.role(ctx, *req.Role)
		if err != nil {
			return nil, err
		}
		user.RoleID = role.ID
		user.Role = *role
	}

	now := s.now()
	user.LastModified = now
	if err := s.Repo.Save(ctx, user); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, user, events.TypeUserUpdated, now)
	return user, nil
}

// Delete is a soft delete; the row stays for reporting.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	user.IsDeleted = true
	user.LastModified = now
	if err := s.Repo.Save(ctx, user); err != nil {
		return err
	}

	if s.Index != nil {
		if err := s.Index.DeleteUser(ctx, user.ID); err != nil {
			logging.FromContext(ctx).Warn("index_delete_failed", "user_id", user.ID, "error", err)
		}
	}
	publishEvent(ctx, s.Events, events.TopicUserEvents, user.ID, events.UserEvent{
		Type:       events.TypeUserDeleted,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	})
	return nil
}

func (s *UserService) role(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.Repo.RoleByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repo.ErrRoleNotFound) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, name)
		}
		return nil, err
	}
	return role, nil
}

func (s *UserService) afterWrite(ctx context.Context, user *models.User, eventType string, now time.Time) {
	indexUser(ctx, s.Index, user)
	publishEvent(ctx, s.Events, events.TopicUserEvents, user.ID, events.UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	})
}

// indexUser keeps the search document in step with the row; failures are logged.
func indexUser(ctx context.Context, idx UserIndex, user *models.User) {
	if idx == nil {
		return
	}
	if err := idx.IndexUser(ctx, user); err != nil {
		logging.FromContext(ctx).Warn("index_user_failed", "user_id", user.ID, "error", err)
	}
}

// EnsureAdmin creates an admin account unless the email is already taken.
// It reports whether a new account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.Create(ctx, transport.CreateUserRequest{
		Email:    email,
		FullName: "Administrator",
		Password: password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
