package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository"
)

// LocationService defines location lifecycle operations.
type LocationService interface {
	// Create inserts a location; the creator must be listed as an owner.
	Create(ctx context.Context, l model.Location) (*model.Location, error)
	// GetAllLocations returns every location with its plant ids.
	GetAllLocations(ctx context.Context, loggedInUserID string) ([]model.Location, error)
	// GetByID returns a location with its plant ids.
	GetByID(ctx context.Context, id, loggedInUserID string) (*model.Location, error)
	// GetLocationOnlyByID returns a location without the plant rollup.
	GetLocationOnlyByID(ctx context.Context, id, loggedInUserID string) (*model.Location, error)
	// GetByIDs returns locations by id with their plant ids.
	GetByIDs(ctx context.Context, ids []string, loggedInUserID string) ([]model.Location, error)
	// GetByUserID returns the locations a user is a member of.
	GetByUserID(ctx context.Context, userID, loggedInUserID string) ([]model.Location, error)
	// RoleAtLocation reports whether userID holds one of roles at the location.
	RoleAtLocation(ctx context.Context, locationID, userID string, roles ...model.Role) bool
	// UpdateByID replaces title, members and stations; owners only.
	UpdateByID(ctx context.Context, l model.Location, loggedInUserID string) (*model.Location, error)
	// Delete removes a location; owners only.
	Delete(ctx context.Context, id, loggedInUserID string) (int64, error)
	// AuditOwners lists locations left without any owner.
	AuditOwners(ctx context.Context) ([]model.Location, error)
}

// LocationServiceImpl implements LocationService.
type LocationServiceImpl struct {
	base
	locations repository.LocationRepository
	plants    repository.PlantRepository
	auth      Authorizer
}

var _ LocationService = (*LocationServiceImpl)(nil)

// NewLocationService constructs LocationService.
func NewLocationService(locations repository.LocationRepository, plants repository.PlantRepository, auth Authorizer, opts ...Option) *LocationServiceImpl {
	return &LocationServiceImpl{base: newBase(opts), locations: locations, plants: plants, auth: auth}
}

type queryOpts struct {
	withPlantIDs bool
	// readerID is the logged-in user; empty for anonymous and admin reads.
	readerID string
}

// query is the single read path for locations. The plant rollup costs an
// extra round trip and is skipped when only membership data is needed.
// The reference coordinate is returned to owners of the location only:
// together with rebased plant offsets it would give away absolute positions.
func (s *LocationServiceImpl) query(ctx context.Context, fetch func() ([]model.LocationDoc, error), o queryOpts) ([]model.Location, error) {
	docs, err := fetch()
	if err != nil {
		return nil, err
	}
	reader, _ := ident.ToInternal(o.readerID)
	out := make([]model.Location, 0, len(docs))
	for _, d := range docs {
		l := model.LocationFromDoc(d)
		if role, ok := d.RoleOf(reader); o.readerID == "" || !ok || role != model.RoleOwner {
			l.Loc = nil
		}
		out = append(out, l)
	}
	if !o.withPlantIDs || len(docs) == 0 {
		return out, nil
	}
	ids := make([]ident.ID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	byLoc, err := s.plants.IDsByLocationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, d := range docs {
		out[i].PlantIDs = ident.ToExternalMany(byLoc[d.ID])
	}
	return out, nil
}

func (s *LocationServiceImpl) one(ctx context.Context, id string, o queryOpts) (*model.Location, error) {
	lid, err := ident.ToInternal(id)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	out, err := s.query(ctx, func() ([]model.LocationDoc, error) {
		d, err := s.locations.GetByID(ctx, lid)
		if err != nil {
			return nil, err
		}
		return []model.LocationDoc{*d}, nil
	}, o)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Create inserts a location. Title, creator and members are required and
// the creator must hold the owner role.
func (s *LocationServiceImpl) Create(ctx context.Context, l model.Location) (_ *model.Location, err error) {
	defer s.track("location.create", time.Now(), &err, zap.String("created_by", l.CreatedBy))

	switch {
	case len(l.Members) == 0:
		return nil, validation("missing members")
	case l.CreatedBy == "":
		return nil, validation("missing createdBy")
	case l.Title == "":
		return nil, validation("missing title")
	}
	if l.Members[l.CreatedBy] != model.RoleOwner {
		return nil, validation("creator must be an owner member")
	}
	doc, err := model.LocationToDoc(l)
	if err != nil {
		return nil, err
	}
	if doc.ID.IsZero() {
		doc.ID = ident.New()
	}
	if err := s.locations.Create(ctx, &doc); err != nil {
		return nil, err
	}
	out := model.LocationFromDoc(doc)
	out.PlantIDs = []string{}
	return &out, nil
}

// GetAllLocations returns every location with plant ids.
func (s *LocationServiceImpl) GetAllLocations(ctx context.Context, loggedInUserID string) (_ []model.Location, err error) {
	defer s.track("location.list", time.Now(), &err)
	return s.query(ctx, func() ([]model.LocationDoc, error) { return s.locations.List(ctx) },
		queryOpts{withPlantIDs: true, readerID: loggedInUserID})
}

// GetByID returns a location with plant ids; malformed ids are not found.
func (s *LocationServiceImpl) GetByID(ctx context.Context, id, loggedInUserID string) (_ *model.Location, err error) {
	defer s.track("location.get", time.Now(), &err, zap.String("location_id", id))
	return s.one(ctx, id, queryOpts{withPlantIDs: true, readerID: loggedInUserID})
}

// GetLocationOnlyByID returns a location without the plant rollup.
func (s *LocationServiceImpl) GetLocationOnlyByID(ctx context.Context, id, loggedInUserID string) (_ *model.Location, err error) {
	defer s.track("location.get_only", time.Now(), &err, zap.String("location_id", id))
	return s.one(ctx, id, queryOpts{readerID: loggedInUserID})
}

// GetByIDs returns the locations among ids; malformed ids are skipped.
func (s *LocationServiceImpl) GetByIDs(ctx context.Context, ids []string, loggedInUserID string) (_ []model.Location, err error) {
	defer s.track("location.get_many", time.Now(), &err, zap.Int("count", len(ids)))
	lids := ident.ToInternalValid(ids)
	return s.query(ctx, func() ([]model.LocationDoc, error) { return s.locations.GetByIDs(ctx, lids) },
		queryOpts{withPlantIDs: true, readerID: loggedInUserID})
}

// GetByUserID returns the locations listing userID as a member.
func (s *LocationServiceImpl) GetByUserID(ctx context.Context, userID, loggedInUserID string) (_ []model.Location, err error) {
	defer s.track("location.by_user", time.Now(), &err, zap.String("user_id", userID))
	uid, err := ident.ToInternal(userID)
	if err != nil {
		return []model.Location{}, nil
	}
	return s.query(ctx, func() ([]model.LocationDoc, error) { return s.locations.GetByMember(ctx, uid) },
		queryOpts{withPlantIDs: true, readerID: loggedInUserID})
}

// RoleAtLocation delegates to the Authorizer.
func (s *LocationServiceImpl) RoleAtLocation(ctx context.Context, locationID, userID string, roles ...model.Role) bool {
	return s.auth.RoleAtLocation(ctx, locationID, userID, roles...)
}

// requireOwner distinguishes a missing location from a caller who is not an owner.
func (s *LocationServiceImpl) requireOwner(ctx context.Context, locationID, userID string) (*model.LocationDoc, ident.ID, error) {
	cur, uid, role, err := membership(ctx, s.locations, locationID, userID)
	if err != nil {
		return nil, ident.Nil, err
	}
	if role != model.RoleOwner {
		return nil, ident.Nil, errs.ErrForbidden
	}
	return cur, uid, nil
}

// UpdateByID replaces title, members and stations of a location the caller
// owns. Fields left empty keep their stored value. The reference coordinate
// is never changed here: rebased plant positions already handed out depend on it.
func (s *LocationServiceImpl) UpdateByID(ctx context.Context, l model.Location, loggedInUserID string) (_ *model.Location, err error) {
	defer s.track("location.update", time.Now(), &err,
		zap.String("location_id", l.ID), zap.String("user_id", loggedInUserID))

	if l.ID == "" {
		return nil, validation("missing _id")
	}
	cur, ownerID, err := s.requireOwner(ctx, l.ID, loggedInUserID)
	if err != nil {
		return nil, err
	}
	next, err := model.LocationToDoc(l)
	if err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.CreatedBy = cur.CreatedBy
	next.Loc = nil
	if next.Title == "" {
		next.Title = cur.Title
	}
	if next.Members == nil {
		next.Members = cur.Members
	}
	if next.Stations == nil {
		next.Stations = cur.Stations
	}
	if !next.HasOwner() {
		s.log.Warn("location left without owner",
			zap.String("location_id", l.ID), zap.String("user_id", loggedInUserID))
	}

	matched, err := s.locations.Update(ctx, &next, ownerID)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errs.ErrNotFound
	}
	return s.one(ctx, l.ID, queryOpts{withPlantIDs: true, readerID: loggedInUserID})
}

// Delete removes a location the caller owns. Plants at the location are kept.
func (s *LocationServiceImpl) Delete(ctx context.Context, id, loggedInUserID string) (_ int64, err error) {
	defer s.track("location.delete", time.Now(), &err,
		zap.String("location_id", id), zap.String("user_id", loggedInUserID))

	cur, ownerID, err := s.requireOwner(ctx, id, loggedInUserID)
	if err != nil {
		return 0, err
	}
	n, err := s.locations.Delete(ctx, cur.ID, ownerID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errs.ErrNotFound
	}
	return n, nil
}

// AuditOwners lists locations whose members map holds no owner.
func (s *LocationServiceImpl) AuditOwners(ctx context.Context) (_ []model.Location, err error) {
	defer s.track("location.audit_owners", time.Now(), &err)
	return s.query(ctx, func() ([]model.LocationDoc, error) { return s.locations.ListWithoutOwner(ctx) }, queryOpts{})
}
