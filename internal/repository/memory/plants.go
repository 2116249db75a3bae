package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// PlantRepo is an in-memory PlantRepository.
type PlantRepo struct {
	mu     sync.RWMutex
	plants map[ident.ID]model.PlantDoc
}

// NewPlantRepo creates an empty plant repository.
func NewPlantRepo() *PlantRepo {
	return &PlantRepo{plants: make(map[ident.ID]model.PlantDoc)}
}

func plantsByTitle(ps []model.PlantDoc) {
	sortByKey(ps, func(p model.PlantDoc) string { return p.Title }, func(p model.PlantDoc) ident.ID { return p.ID })
}

// Create adds a new plant.
func (r *PlantRepo) Create(_ context.Context, p *model.PlantDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plants[p.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.plants[p.ID] = model.ClonePlantDoc(*p)
	return nil
}

// GetByID returns a plant by id.
func (r *PlantRepo) GetByID(_ context.Context, id ident.ID) (*model.PlantDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plants[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := model.ClonePlantDoc(p)
	return &c, nil
}

// GetByIDs returns the plants among ids that exist, ordered by title.
func (r *PlantRepo) GetByIDs(_ context.Context, ids []ident.ID) ([]model.PlantDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.PlantDoc, 0, len(ids))
	for id := range idSet(ids) {
		if p, ok := r.plants[id]; ok {
			out = append(out, model.ClonePlantDoc(p))
		}
	}
	plantsByTitle(out)
	return out, nil
}

// GetByLocationID returns a location's plants ordered by title.
func (r *PlantRepo) GetByLocationID(_ context.Context, locationID ident.ID) ([]model.PlantDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.PlantDoc, 0)
	for _, p := range r.plants {
		if p.LocationID == locationID {
			out = append(out, model.ClonePlantDoc(p))
		}
	}
	plantsByTitle(out)
	return out, nil
}

// IDsByLocationIDs groups plant ids by location id.
func (r *PlantRepo) IDsByLocationIDs(_ context.Context, locationIDs []ident.ID) (map[ident.ID][]ident.ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := idSet(locationIDs)
	matched := make([]model.PlantDoc, 0)
	for _, p := range r.plants {
		if _, ok := want[p.LocationID]; ok {
			matched = append(matched, p)
		}
	}
	plantsByTitle(matched)
	out := make(map[ident.ID][]ident.ID)
	for _, p := range matched {
		out[p.LocationID] = append(out[p.LocationID], p.ID)
	}
	return out, nil
}

// Update replaces the mutable fields of a plant owned by p.UserID.
func (r *PlantRepo) Update(_ context.Context, p *model.PlantDoc) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.plants[p.ID]
	if !ok || cur.UserID != p.UserID {
		return 0, nil
	}
	next := model.ClonePlantDoc(*p)
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	p.UpdatedAt = next.UpdatedAt
	r.plants[p.ID] = next
	return 1, nil
}

// Delete removes a plant owned by userID.
func (r *PlantRepo) Delete(_ context.Context, id, userID ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.plants[id]
	if !ok || cur.UserID != userID {
		return 0, nil
	}
	delete(r.plants, id)
	return 1, nil
}
