package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type Store interface {
	Insert(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	Update(ctx context.Context, id int64, c Changes) (User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]User, int, error)
}

// MemoryStore enforces the same uniqueness rules as the Postgres unique
// constraints, checked under the write lock.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[int64]User
	nextID  int64
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]User),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conflictLocked(u.Email, u.Username, 0); err != nil {
		return User{}, err
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = s.nowFunc().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if id != excludeID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UsernameTaken(_ context.Context, username string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if id != excludeID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, c Changes) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	email, username := u.Email, u.Username
	if c.Email != nil {
		email = *c.Email
	}
	if c.Username != nil {
		username = *c.Username
	}
	if err := s.conflictLocked(email, username, id); err != nil {
		return User{}, err
	}

	u.Email = email
	u.Username = username
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	if c.IsActive != nil {
		u.IsActive = *c.IsActive
	}
	s.users[id] = u
	return u, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]User, int, error) {
	s.mu.RLock()
	matched := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if f.matches(u) {
			matched = append(matched, u)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) conflictLocked(email, username string, excludeID int64) error {
	for id, u := range s.users {
		if id == excludeID {
			continue
		}
		if u.Email == email {
			return ErrDuplicateEmail
		}
	}
	for id, u := range s.users {
		if id == excludeID {
			continue
		}
		if u.Username == username {
			return ErrDuplicateUsername
		}
	}
	return nil
}

func (f Filter) matches(u User) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			return false
		}
	}
	if len(f.Roles) > 0 {
		ok := false
		for _, r := range f.Roles {
			if u.Role == r {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if u.IsActive == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
