package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// UserRepo is an in-memory UserRepository.
type UserRepo struct {
	mu    sync.RWMutex
	users map[ident.ID]model.UserDoc
}

// NewUserRepo creates an empty user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[ident.ID]model.UserDoc)}
}

// Create adds a new user.
func (r *UserRepo) Create(_ context.Context, u *model.UserDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.users[u.ID] = model.CloneUserDoc(*u)
	return nil
}

// GetByID returns a user by id.
func (r *UserRepo) GetByID(_ context.Context, id ident.ID) (*model.UserDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := model.CloneUserDoc(u)
	return &c, nil
}

// GetByIDs returns the users among ids that exist.
func (r *UserRepo) GetByIDs(_ context.Context, ids []ident.ID) ([]model.UserDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.UserDoc, 0, len(ids))
	for id := range idSet(ids) {
		if u, ok := r.users[id]; ok {
			out = append(out, model.CloneUserDoc(u))
		}
	}
	return out, nil
}

// FindBySocialID returns the user linked to a provider account.
func (r *UserRepo) FindBySocialID(_ context.Context, p model.Provider, socialID string) (*model.UserDoc, error) {
	if p != model.ProviderFacebook && p != model.ProviderGoogle {
		return nil, fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, p)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		s := u.Facebook
		if p == model.ProviderGoogle {
			s = u.Google
		}
		if s != nil && s.ID == socialID {
			c := model.CloneUserDoc(u)
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

// FindByEmail returns the oldest user with the given email, case-insensitively.
func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.UserDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *model.UserDoc
	for _, u := range r.users {
		if u.Email == "" || !strings.EqualFold(u.Email, email) {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			c := model.CloneUserDoc(u)
			found = &c
		}
	}
	if found == nil {
		return nil, errs.ErrNotFound
	}
	return found, nil
}

// Update replaces name, email and social blocks.
func (r *UserRepo) Update(_ context.Context, u *model.UserDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[u.ID]
	if !ok {
		return errs.ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	next := model.CloneUserDoc(*u)
	next.CreatedAt = cur.CreatedAt
	r.users[u.ID] = next
	return nil
}

// List returns every user ordered by name.
func (r *UserRepo) List(_ context.Context) ([]model.UserDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.UserDoc, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, model.CloneUserDoc(u))
	}
	sortByKey(out, func(u model.UserDoc) string { return u.Name }, func(u model.UserDoc) ident.ID { return u.ID })
	return out, nil
}
