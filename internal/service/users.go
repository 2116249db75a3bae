package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository"
)

// UserQuery selects users for GetByQuery. Empty fields do not filter.
type UserQuery struct {
	IDs   []string
	Email string
}

// UserService defines account operations used by the login flow.
type UserService interface {
	// FindOrCreate resolves a login event to a user, creating the user and a
	// home location on first login.
	FindOrCreate(ctx context.Context, d model.UserDetails) (*model.User, error)
	// GetByID returns a user with the ids of the locations it belongs to.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByQuery returns the users matching q.
	GetByQuery(ctx context.Context, q UserQuery) ([]model.User, error)
}

// UserServiceImpl implements UserService.
type UserServiceImpl struct {
	base
	users     repository.UserRepository
	locations repository.LocationRepository
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, locations repository.LocationRepository, opts ...Option) *UserServiceImpl {
	return &UserServiceImpl{base: newBase(opts), users: users, locations: locations}
}

// FindOrCreate looks the user up by provider id, then by email. A match gets
// the provider block merged in; otherwise a new user is created together
// with a home location it owns. A known user belonging to no location gets
// the home location again, which also repairs a create that failed halfway.
func (s *UserServiceImpl) FindOrCreate(ctx context.Context, d model.UserDetails) (_ *model.User, err error) {
	defer s.track("user.find_or_create", time.Now(), &err, zap.String("email", d.Email))

	provider, social, err := d.Source()
	if err != nil {
		return nil, err
	}
	email := d.Email
	if email == "" {
		email = social.Email
	}

	u, err := s.users.FindBySocialID(ctx, provider, social.ID)
	if errors.Is(err, errs.ErrNotFound) && email != "" {
		u, err = s.users.FindByEmail(ctx, email)
	}
	switch {
	case err == nil:
		u.SetSocial(provider, social)
		if u.Email == "" {
			u.Email = email
		}
		if err := s.users.Update(ctx, u); err != nil {
			return nil, err
		}
		out, err := s.withLocations(ctx, *u)
		if err != nil || len(out.LocationIDs) > 0 {
			return out, err
		}
		s.log.Warn("user has no location, creating home", zap.String("user_id", out.ID))
		name := u.Name
		if name == "" {
			name = social.Name
		}
		homeID, err := s.createHome(ctx, u.ID, name)
		if err != nil {
			return nil, err
		}
		out.LocationIDs = []string{homeID}
		return out, nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	name := d.Name
	if name == "" {
		name = social.Name
	}
	doc := model.UserDoc{ID: ident.New(), Name: name, Email: email}
	doc.SetSocial(provider, social)
	if err := s.users.Create(ctx, &doc); err != nil {
		return nil, err
	}
	homeID, err := s.createHome(ctx, doc.ID, name)
	if err != nil {
		return nil, err
	}
	out := model.UserFromDoc(doc)
	out.LocationIDs = []string{homeID}
	return &out, nil
}

// createHome creates the location a new user owns.
func (s *UserServiceImpl) createHome(ctx context.Context, userID ident.ID, name string) (string, error) {
	home := model.LocationDoc{
		ID:        ident.New(),
		Title:     name + " Yard",
		CreatedBy: userID,
		Members:   map[ident.ID]model.Role{userID: model.RoleOwner},
	}
	if err := s.locations.Create(ctx, &home); err != nil {
		s.log.Error("home location not created",
			zap.String("user_id", ident.ToExternal(userID)),
			zap.String("location_id", ident.ToExternal(home.ID)), zap.Error(err))
		return "", err
	}
	return ident.ToExternal(home.ID), nil
}

// GetByID returns a user; malformed ids are not found.
func (s *UserServiceImpl) GetByID(ctx context.Context, id string) (_ *model.User, err error) {
	defer s.track("user.get", time.Now(), &err, zap.String("user_id", id))

	uid, err := ident.ToInternal(id)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.withLocations(ctx, *u)
}

// GetByQuery returns users by email, by ids, or all users.
func (s *UserServiceImpl) GetByQuery(ctx context.Context, q UserQuery) (_ []model.User, err error) {
	defer s.track("user.query", time.Now(), &err)

	var docs []model.UserDoc
	switch {
	case q.Email != "":
		u, err := s.users.FindByEmail(ctx, q.Email)
		if errors.Is(err, errs.ErrNotFound) {
			return []model.User{}, nil
		}
		if err != nil {
			return nil, err
		}
		docs = []model.UserDoc{*u}
	case len(q.IDs) > 0:
		docs, err = s.users.GetByIDs(ctx, ident.ToInternalValid(q.IDs))
	default:
		docs, err = s.users.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.User, 0, len(docs))
	for _, d := range docs {
		u, err := s.withLocations(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// withLocations derives LocationIDs from location memberships.
func (s *UserServiceImpl) withLocations(ctx context.Context, d model.UserDoc) (*model.User, error) {
	locs, err := s.locations.GetByMember(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	out := model.UserFromDoc(d)
	out.LocationIDs = make([]string, 0, len(locs))
	for _, l := range locs {
		out.LocationIDs = append(out.LocationIDs, ident.ToExternal(l.ID))
	}
	return &out, nil
}
