// Package user manages operator accounts and their roles.
package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrNotFound is returned when no user has the requested id.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken rejects duplicate usernames.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers unknown users, wrong passwords and inactive accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLastAdmin blocks removing or demoting the only active admin.
	ErrLastAdmin = errors.New("at least one active admin is required")
)

// Input creates a user.
type Input struct {
	Username string `json:"username" validate:"required,min=3,max=40,alphanum"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required,oneof=admin cashier"`
}

// UpdateInput changes a user. Empty fields are left as they are.
type UpdateInput struct {
	Name     string `json:"name" validate:"max=120"`
	Password string `json:"password" validate:"omitempty,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=admin cashier"`
	Active   *bool  `json:"active"`
}

// View is a user without credential material.
type View struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ToView strips the password hash.
func ToView(u model.User) View {
	return View{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role, Active: u.Active, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

// Service owns the user collection.
type Service struct {
	Users  *store.Collection[model.User]
	Params *argon2id.Params
	Now    func() time.Time

	mu sync.Mutex
}

// NewService wires the user store over kv.
func NewService(kv store.KV) *Service {
	return &Service{Users: store.NewCollection[model.User](kv, store.KeyUsers)}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Users == nil {
		return errors.New("user service not configured")
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	params := argon2id.DefaultParams
	if s.Params != nil {
		params = s.Params
	}
	hash, err := argon2id.CreateHash(password, params)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// EnsureAdmin creates the bootstrap admin when no user exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	all, err := s.Users.Load(ctx)
	if err != nil {
		return false, err
	}
	if len(all) > 0 {
		return false, nil
	}
	if strings.TrimSpace(password) == "" {
		return false, errors.New("admin password is required to bootstrap the first user")
	}
	_, err = s.Create(ctx, Input{Username: username, Name: "Administrator", Password: password, Role: string(model.RoleAdmin)})
	return err == nil, err
}

// List returns every user sorted by username.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Users.Load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return all, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	all, err := s.Users.Load(ctx)
	if err != nil {
		return model.User{}, err
	}
	if i := indexOf(all, id); i >= 0 {
		return all[i], nil
	}
	return model.User{}, ErrNotFound
}

// Create validates and stores a new user.
func (s *Service) Create(ctx context.Context, in Input) (model.User, error) {
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := common.ValidateStruct(in); err != nil {
		return model.User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	role, _ := model.ParseRole(in.Role)
	now := s.now()
	u := model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.mutate(ctx, func(all []model.User) ([]model.User, error) {
		for _, existing := range all {
			if existing.Username == u.Username {
				return nil, ErrUsernameTaken
			}
		}
		return append(all, u), nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Update changes name, role, status or password.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.User, error) {
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := common.ValidateStruct(in); err != nil {
		return model.User{}, err
	}
	var hash string
	if in.Password != "" {
		h, err := s.hash(in.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = h
	}
	var updated model.User
	err := s.mutate(ctx, func(all []model.User) ([]model.User, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		u := all[i]
		if in.Name != "" {
			u.Name = in.Name
		}
		if in.Role != "" {
			u.Role, _ = model.ParseRole(in.Role)
		}
		if in.Active != nil {
			u.Active = *in.Active
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		u.UpdatedAt = s.now()
		all[i] = u
		if activeAdmins(all) == 0 {
			return nil, ErrLastAdmin
		}
		updated = u
		return all, nil
	})
	return updated, err
}

// Delete removes a user. The last active admin cannot be removed.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mutate(ctx, func(all []model.User) ([]model.User, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		rest := append(all[:i:i], all[i+1:]...)
		if activeAdmins(rest) == 0 {
			return nil, ErrLastAdmin
		}
		return rest, nil
	})
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	all, err := s.Users.Load(ctx)
	if err != nil {
		return model.User{}, err
	}
	name := strings.ToLower(strings.TrimSpace(username))
	for _, u := range all {
		if u.Username != name {
			continue
		}
		ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
		if err != nil || !ok || !u.Active {
			return model.User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	return model.User{}, ErrInvalidCredentials
}

func (s *Service) mutate(ctx context.Context, fn func([]model.User) ([]model.User, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Users.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return s.Users.Save(ctx, next)
}

func activeAdmins(all []model.User) int {
	n := 0
	for _, u := range all {
		if u.Active && u.Role == model.RoleAdmin {
			n++
		}
	}
	return n
}

func indexOf(all []model.User, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
