package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// LocationRepo is an in-memory LocationRepository.
type LocationRepo struct {
	mu        sync.RWMutex
	locations map[ident.ID]model.LocationDoc
}

// NewLocationRepo creates an empty location repository.
func NewLocationRepo() *LocationRepo {
	return &LocationRepo{locations: make(map[ident.ID]model.LocationDoc)}
}

func byTitle(ls []model.LocationDoc) {
	sortByKey(ls, func(l model.LocationDoc) string { return l.Title }, func(l model.LocationDoc) ident.ID { return l.ID })
}

// Create adds a new location.
func (r *LocationRepo) Create(_ context.Context, l *model.LocationDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[l.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	r.locations[l.ID] = model.CloneLocationDoc(*l)
	return nil
}

// GetByID returns a location by id.
func (r *LocationRepo) GetByID(_ context.Context, id ident.ID) (*model.LocationDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.locations[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := model.CloneLocationDoc(l)
	return &c, nil
}

// GetByIDs returns the locations among ids that exist, ordered by title.
func (r *LocationRepo) GetByIDs(_ context.Context, ids []ident.ID) ([]model.LocationDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.LocationDoc, 0, len(ids))
	for id := range idSet(ids) {
		if l, ok := r.locations[id]; ok {
			out = append(out, model.CloneLocationDoc(l))
		}
	}
	byTitle(out)
	return out, nil
}

// GetByMember returns the locations listing userID among their members.
func (r *LocationRepo) GetByMember(_ context.Context, userID ident.ID) ([]model.LocationDoc, error) {
	return r.filter(func(l model.LocationDoc) bool {
		_, ok := l.Members[userID]
		return ok
	}), nil
}

// List returns every location ordered by title.
func (r *LocationRepo) List(_ context.Context) ([]model.LocationDoc, error) {
	return r.filter(func(model.LocationDoc) bool { return true }), nil
}

// ListWithoutOwner returns locations whose members map holds no owner.
func (r *LocationRepo) ListWithoutOwner(_ context.Context) ([]model.LocationDoc, error) {
	return r.filter(func(l model.LocationDoc) bool { return !l.HasOwner() }), nil
}

func (r *LocationRepo) filter(keep func(model.LocationDoc) bool) []model.LocationDoc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.LocationDoc, 0)
	for _, l := range r.locations {
		if keep(l) {
			out = append(out, model.CloneLocationDoc(l))
		}
	}
	byTitle(out)
	return out
}

// Update replaces title, members and stations when ownerID holds the owner
// role. The stored reference coordinate is kept.
func (r *LocationRepo) Update(_ context.Context, l *model.LocationDoc, ownerID ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.locations[l.ID]
	if !ok || cur.Members[ownerID] != model.RoleOwner {
		return 0, nil
	}
	next := model.CloneLocationDoc(*l)
	next.CreatedBy = cur.CreatedBy
	next.CreatedAt = cur.CreatedAt
	next.Loc = cur.Loc
	next.UpdatedAt = time.Now().UTC()
	l.UpdatedAt = next.UpdatedAt
	r.locations[l.ID] = next
	return 1, nil
}

// Delete removes a location when ownerID holds the owner role.
func (r *LocationRepo) Delete(_ context.Context, id, ownerID ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.locations[id]
	if !ok || cur.Members[ownerID] != model.RoleOwner {
		return 0, nil
	}
	delete(r.locations, id)
	return 1, nil
}

// SetLocIfAbsent stores p unless a reference coordinate already exists.
func (r *LocationRepo) SetLocIfAbsent(_ context.Context, id ident.ID, p model.GeoPoint) (model.GeoPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.locations[id]
	if !ok {
		return model.GeoPoint{}, errs.ErrNotFound
	}
	if cur.Loc != nil {
		return *cur.Loc, nil
	}
	c := p
	cur.Loc = &c
	r.locations[id] = cur
	return p, nil
}
