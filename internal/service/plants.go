package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/geocache"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository"
)

// PlantService defines plant lifecycle operations.
type PlantService interface {
	// Create inserts a plant at a location where the caller is owner or manager.
	Create(ctx context.Context, p model.Plant, loggedInUserID string) (*model.Plant, error)
	// GetByID returns a plant with its note ids; malformed ids are not found.
	GetByID(ctx context.Context, id, loggedInUserID string) (*model.Plant, error)
	// GetByIDs returns the plants among ids, skipping malformed ones.
	GetByIDs(ctx context.Context, ids []string, loggedInUserID string) ([]model.Plant, error)
	// GetByLocationID returns a location's plants ordered by title.
	GetByLocationID(ctx context.Context, locationID, loggedInUserID string) ([]model.Plant, error)
	// Update replaces a plant owned by p.UserID.
	Update(ctx context.Context, p model.Plant, loggedInUserID string) (*model.Plant, error)
	// Delete removes a plant and cleans up the notes referencing it.
	Delete(ctx context.Context, id, userID string) (int64, error)
}

// PlantServiceImpl implements PlantService.
type PlantServiceImpl struct {
	base
	plants    repository.PlantRepository
	notes     repository.NoteRepository
	locations repository.LocationRepository
	auth      Authorizer
	geo       geocache.Cache
	// cascadeLimit bounds concurrent note rewrites during Delete.
	cascadeLimit int
}

var _ PlantService = (*PlantServiceImpl)(nil)

// NewPlantService constructs PlantService.
func NewPlantService(
	plants repository.PlantRepository,
	notes repository.NoteRepository,
	locations repository.LocationRepository,
	auth Authorizer,
	geo geocache.Cache,
	opts ...Option,
) *PlantServiceImpl {
	return &PlantServiceImpl{
		base:         newBase(opts),
		plants:       plants,
		notes:        notes,
		locations:    locations,
		auth:         auth,
		geo:          geo,
		cascadeLimit: 8,
	}
}

// Create checks the caller's role before any write, then inserts.
func (s *PlantServiceImpl) Create(ctx context.Context, p model.Plant, loggedInUserID string) (_ *model.Plant, err error) {
	defer s.track("plant.create", time.Now(), &err,
		zap.String("location_id", p.LocationID), zap.String("user_id", loggedInUserID))

	if p.LocationID == "" {
		return nil, validation("missing locationId")
	}
	if p.UserID == "" {
		return nil, validation("missing userId")
	}
	if !s.auth.RoleAtLocation(ctx, p.LocationID, loggedInUserID, model.RoleOwner, model.RoleManager) {
		return nil, errs.ErrForbidden
	}
	if err := p.NormalizeDates(); err != nil {
		return nil, err
	}
	doc, err := model.PlantToDoc(p)
	if err != nil {
		return nil, err
	}
	if doc.ID.IsZero() {
		doc.ID = ident.New()
	}
	if err := s.plants.Create(ctx, &doc); err != nil {
		return nil, err
	}
	out, err := s.forRead(ctx, doc, loggedInUserID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByID loads a plant and the ids of its notes, date ascending.
func (s *PlantServiceImpl) GetByID(ctx context.Context, id, loggedInUserID string) (_ *model.Plant, err error) {
	defer s.track("plant.get", time.Now(), &err, zap.String("plant_id", id))

	pid, err := ident.ToInternal(id)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	doc, err := s.plants.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.GetByPlantIDs(ctx, []ident.ID{pid})
	if err != nil {
		return nil, err
	}
	out, err := s.forRead(ctx, *doc, loggedInUserID)
	if err != nil {
		return nil, err
	}
	out.Notes = make([]string, 0, len(notes))
	for _, n := range notes {
		out.Notes = append(out.Notes, ident.ToExternal(n.ID))
	}
	return &out, nil
}

// GetByIDs loads plants by id. Note lists are not populated.
func (s *PlantServiceImpl) GetByIDs(ctx context.Context, ids []string, loggedInUserID string) (_ []model.Plant, err error) {
	defer s.track("plant.get_many", time.Now(), &err, zap.Int("count", len(ids)))

	docs, err := s.plants.GetByIDs(ctx, ident.ToInternalValid(ids))
	if err != nil {
		return nil, err
	}
	return s.manyForRead(ctx, docs, loggedInUserID)
}

// GetByLocationID loads a location's plants ordered by title. Note lists are
// not populated; list views fetch notes in one batch instead.
func (s *PlantServiceImpl) GetByLocationID(ctx context.Context, locationID, loggedInUserID string) (_ []model.Plant, err error) {
	defer s.track("plant.by_location", time.Now(), &err, zap.String("location_id", locationID))

	lid, err := ident.ToInternal(locationID)
	if err != nil {
		return []model.Plant{}, nil
	}
	docs, err := s.plants.GetByLocationID(ctx, lid)
	if err != nil {
		return nil, err
	}
	return s.manyForRead(ctx, docs, loggedInUserID)
}

// Update replaces the mutable fields of a plant. The write is scoped by
// both id and user id, so another user's plant matches nothing. Moving a
// plant needs the same role at the new location that creating it there would.
func (s *PlantServiceImpl) Update(ctx context.Context, p model.Plant, loggedInUserID string) (_ *model.Plant, err error) {
	defer s.track("plant.update", time.Now(), &err,
		zap.String("plant_id", p.ID), zap.String("user_id", p.UserID))

	if p.ID == "" {
		return nil, validation("missing _id")
	}
	if p.UserID == "" {
		return nil, validation("missing userId")
	}
	if p.LocationID == "" {
		return nil, validation("missing locationId")
	}
	if err := p.NormalizeDates(); err != nil {
		return nil, err
	}
	doc, err := model.PlantToDoc(p)
	if err != nil {
		return nil, err
	}
	cur, err := s.plants.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if cur.UserID != doc.UserID {
		return nil, errs.ErrNotFound
	}
	if cur.LocationID != doc.LocationID &&
		!s.auth.RoleAtLocation(ctx, p.LocationID, loggedInUserID, model.RoleOwner, model.RoleManager) {
		return nil, errs.ErrForbidden
	}
	n, err := s.plants.Update(ctx, &doc)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errs.ErrNotFound
	}
	stored, err := s.plants.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	out, err := s.forRead(ctx, *stored, loggedInUserID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a plant owned by userID along with the notes that only
// referenced it. Notes that reference other plants too lose this plant's id.
// Every step is idempotent, so a failed call can be retried as a whole.
func (s *PlantServiceImpl) Delete(ctx context.Context, id, userID string) (_ int64, err error) {
	defer s.track("plant.delete", time.Now(), &err,
		zap.String("plant_id", id), zap.String("user_id", userID))

	uid, err := ident.ToInternal(userID)
	if err != nil {
		return 0, validation("malformed userId")
	}
	pid, err := ident.ToInternal(id)
	if err != nil {
		return 0, nil
	}

	notes, err := s.notes.GetByPlantAndUser(ctx, pid, uid)
	if err != nil {
		return 0, err
	}
	var (
		orphaned []ident.ID
		rewrites []model.NoteDoc
	)
	for _, n := range notes {
		rest := without(n.PlantIDs, pid)
		if len(rest) == 0 {
			orphaned = append(orphaned, n.ID)
			continue
		}
		n.PlantIDs = rest
		rewrites = append(rewrites, n)
	}

	var deleted, rewritten atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cascadeLimit)
	if len(orphaned) > 0 {
		g.Go(func() error {
			n, err := s.notes.DeleteByIDs(gctx, orphaned, uid)
			deleted.Add(n)
			return err
		})
	}
	for _, n := range rewrites {
		g.Go(func() error {
			c, err := s.notes.SetPlantIDs(gctx, n.ID, uid, n.PlantIDs)
			rewritten.Add(c)
			return err
		})
	}
	err = g.Wait()
	s.m.Cascade(metrics.NotesDeleted, deleted.Load())
	s.m.Cascade(metrics.NotesRewritten, rewritten.Load())
	if err != nil {
		return 0, err
	}

	removed, err := s.plants.Delete(ctx, pid, uid)
	if err != nil {
		return 0, err
	}
	s.m.Cascade(metrics.PlantsDeleted, removed)
	return removed, nil
}

func without(ids []ident.ID, drop ident.ID) []ident.ID {
	out := make([]ident.ID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func (s *PlantServiceImpl) manyForRead(ctx context.Context, docs []model.PlantDoc, readerID string) ([]model.Plant, error) {
	out := make([]model.Plant, 0, len(docs))
	for _, d := range docs {
		p, err := s.forRead(ctx, d, readerID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// forRead converts a stored plant for readerID. A plant position is seeded
// as the location reference when none exists yet, and is returned relative
// to that reference to anyone but the plant's owner.
func (s *PlantServiceImpl) forRead(ctx context.Context, doc model.PlantDoc, readerID string) (model.Plant, error) {
	out := model.PlantFromDoc(doc)
	if doc.Loc == nil {
		return out, nil
	}
	owner := readerID != "" && readerID == out.UserID
	ref, err := s.referencePoint(ctx, doc.LocationID, *doc.Loc)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// no location to rebase against; only the owner sees the position
		if !owner {
			s.log.Warn("plant location missing, hiding position",
				zap.String("plant_id", out.ID), zap.String("location_id", out.LocationID))
			out.Loc = nil
		}
		return out, nil
	case err != nil:
		return model.Plant{}, err
	}
	if !owner {
		p := doc.Loc.Rebase(ref)
		out.Loc = &p
	}
	return out, nil
}

// referencePoint returns the reference coordinate of a location, adopting
// candidate when the location has none. The cache is re-checked right before
// the conditional write; the store decides the winner and the cache is
// seeded with whatever the store holds.
func (s *PlantServiceImpl) referencePoint(ctx context.Context, locationID ident.ID, candidate model.GeoPoint) (model.GeoPoint, error) {
	if p, ok := s.geo.Get(locationID); ok {
		s.m.GeoCache(metrics.CacheHit)
		return p, nil
	}
	s.m.GeoCache(metrics.CacheMiss)

	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return model.GeoPoint{}, err
	}
	if loc.Loc != nil {
		p, _ := s.geo.SetIfAbsent(locationID, *loc.Loc)
		return p, nil
	}
	if p, ok := s.geo.Get(locationID); ok {
		return p, nil
	}
	stored, err := s.locations.SetLocIfAbsent(ctx, locationID, candidate)
	if err != nil {
		return model.GeoPoint{}, err
	}
	p, seeded := s.geo.SetIfAbsent(locationID, stored)
	if seeded {
		s.m.GeoCache(metrics.CacheSeed)
	}
	return p, nil
}
