package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/Skotchmaster/quiz_platform/internal/repo"
	"github.com/Skotchmaster/quiz_platform/pkg/events"
	pkg_hash "github.com/Skotchmaster/quiz_platform/pkg/hash"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore hands out copies so unsaved mutations never leak into the store.
type fakeStore struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]models.User
	roles   map[string]models.Role
	saves   int
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 1,
		users:  map[uint]models.User{},
		roles: map[string]models.Role{
			models.RoleAdmin: {ID: 1, Name: models.RoleAdmin},
			models.RoleUser:  {ID: 2, Name: models.RoleUser},
		},
	}
}

func (f *fakeStore) add(t *testing.T, email string, status models.AccountStatus, lastModified time.Time) models.User {
	t.Helper()

	pwHash, err := pkg_hash.HashPassword(testPassword)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{
		ID:           f.nextID,
		Email:        email,
		PasswordHash: pwHash,
		Status:       status,
		RoleID:       f.roles[models.RoleUser].ID,
		Role:         f.roles[models.RoleUser],
		LastModified: lastModified,
	}
	f.users[u.ID] = u
	f.nextID++
	return u
}

func (f *fakeStore) get(id uint) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) FindByEmail(_ context.Context, email string, excludeDeleted bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) && !(excludeDeleted && u.IsDeleted) {
			cp := u
			return &cp, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (f *fakeStore) FindByID(_ context.Context, id uint, excludeDeleted bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || (excludeDeleted && u.IsDeleted) {
		return nil, repo.ErrUserNotFound
	}
	cp := u
	return &cp, nil
}

func (f *fakeStore) FindByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok && !u.IsDeleted {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) Save(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) RoleByName(_ context.Context, name string) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[strings.ToLower(name)]
	if !ok {
		return nil, repo.ErrRoleNotFound
	}
	return &r, nil
}

func (f *fakeStore) CreateUserIfNotExists(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repo.ErrUserAlreadyExist
		}
	}
	u.ID = f.nextID
	f.nextID++
	stored := *u
	for _, r := range f.roles {
		if r.ID == u.RoleID {
			stored.Role = r
		}
	}
	f.users[u.ID] = stored
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context, offset, limit int) (int64, []models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.User
	for id := uint(1); id < f.nextID; id++ {
		if u, ok := f.users[id]; ok && !u.IsDeleted {
			all = append(all, u)
		}
	}
	return int64(len(all)), page(all, offset, limit), nil
}

func (f *fakeStore) SearchUsers(_ context.Context, q string, offset, limit int) (int64, []models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.User
	for id := uint(1); id < f.nextID; id++ {
		u, ok := f.users[id]
		if ok && !u.IsDeleted && strings.Contains(strings.ToLower(u.Email+" "+u.FullName), strings.ToLower(q)) {
			all = append(all, u)
		}
	}
	return int64(len(all)), page(all, offset, limit), nil
}

func page(all []models.User, offset, limit int) []models.User {
	if offset >= len(all) {
		return []models.User{}
	}
	end := min(offset+limit, len(all))
	return all[offset:end]
}

type published struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		switch ev := e.Event.(type) {
		case events.UserEvent:
			out = append(out, ev.Type)
		case events.EmailRequest:
			out = append(out, "email:"+ev.Template)
		}
	}
	return out
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[uint]string
	status  map[uint]models.AccountStatus
	deleted []uint
	hits    []uint
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{indexed: map[uint]string{}, status: map[uint]models.AccountStatus{}}
}

func (i *fakeIndex) IndexUser(_ context.Context, u *models.User) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.indexed[u.ID] = u.Email
	i.status[u.ID] = u.Status
	return nil
}

func (i *fakeIndex) statusOf(id uint) models.AccountStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status[id]
}

func (i *fakeIndex) DeleteUser(_ context.Context, id uint) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deleted = append(i.deleted, id)
	delete(i.indexed, id)
	return nil
}

func (i *fakeIndex) SearchUsers(_ context.Context, _ string, _, _ int) (int64, []uint, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return 0, nil, i.err
	}
	return int64(len(i.hits)), i.hits, nil
}

func testTokenConfig() tokens.Config {
	return tokens.Config{
		SigningKey:      []byte("test-signing-key"),
		Issuer:          "quiz-test",
		Audience:        "quiz-clients",
		AccessLifetime:  15 * time.Minute,
		RefreshLifetime: 7 * 24 * time.Hour,
	}
}
