package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// NoteRepo is an in-memory NoteRepository.
type NoteRepo struct {
	mu    sync.RWMutex
	notes map[ident.ID]model.NoteDoc
}

// NewNoteRepo creates an empty note repository.
func NewNoteRepo() *NoteRepo {
	return &NoteRepo{notes: make(map[ident.ID]model.NoteDoc)}
}

func notesByDate(ns []model.NoteDoc) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Date != ns[j].Date {
			return ns[i].Date < ns[j].Date
		}
		return idLess(ns[i].ID, ns[j].ID)
	})
}

func references(n model.NoteDoc, plants map[ident.ID]struct{}) bool {
	for _, id := range n.PlantIDs {
		if _, ok := plants[id]; ok {
			return true
		}
	}
	return false
}

func hasImage(n model.NoteDoc, imageID string) bool {
	for _, img := range n.Images {
		if img.ID == imageID {
			return true
		}
	}
	return false
}

func (r *NoteRepo) filter(keep func(model.NoteDoc) bool) []model.NoteDoc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.NoteDoc, 0)
	for _, n := range r.notes {
		if keep(n) {
			out = append(out, model.CloneNoteDoc(n))
		}
	}
	notesByDate(out)
	return out
}

// Create adds a new note.
func (r *NoteRepo) Create(_ context.Context, n *model.NoteDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[n.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	r.notes[n.ID] = model.CloneNoteDoc(*n)
	return nil
}

// GetByID returns a note by id.
func (r *NoteRepo) GetByID(_ context.Context, id ident.ID) (*model.NoteDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := model.CloneNoteDoc(n)
	return &c, nil
}

// GetByIDs returns the notes among ids that exist, date ascending.
func (r *NoteRepo) GetByIDs(_ context.Context, ids []ident.ID) ([]model.NoteDoc, error) {
	want := idSet(ids)
	return r.filter(func(n model.NoteDoc) bool {
		_, ok := want[n.ID]
		return ok
	}), nil
}

// GetByPlantIDs returns notes referencing any of plantIDs, date ascending.
func (r *NoteRepo) GetByPlantIDs(_ context.Context, plantIDs []ident.ID) ([]model.NoteDoc, error) {
	want := idSet(plantIDs)
	return r.filter(func(n model.NoteDoc) bool { return references(n, want) }), nil
}

// GetByPlantAndUser returns userID's notes referencing plantID, date ascending.
func (r *NoteRepo) GetByPlantAndUser(_ context.Context, plantID, userID ident.ID) ([]model.NoteDoc, error) {
	want := idSet([]ident.ID{plantID})
	return r.filter(func(n model.NoteDoc) bool { return n.UserID == userID && references(n, want) }), nil
}

// GetByImageID returns the note carrying imageID.
func (r *NoteRepo) GetByImageID(_ context.Context, imageID string) (*model.NoteDoc, error) {
	found := r.filter(func(n model.NoteDoc) bool { return hasImage(n, imageID) })
	if len(found) == 0 {
		return nil, errs.ErrNotFound
	}
	return &found[0], nil
}

// Latest returns the newest notes across all users, date descending.
func (r *NoteRepo) Latest(_ context.Context, limit int) ([]model.NoteDoc, error) {
	all := r.filter(func(model.NoteDoc) bool { return true })
	out := make([]model.NoteDoc, 0, len(all))
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Update replaces the mutable fields of a note owned by n.UserID.
func (r *NoteRepo) Update(_ context.Context, n *model.NoteDoc) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notes[n.ID]
	if !ok || cur.UserID != n.UserID {
		return 0, nil
	}
	next := model.CloneNoteDoc(*n)
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	n.UpdatedAt = next.UpdatedAt
	r.notes[n.ID] = next
	return 1, nil
}

// SetPlantIDs rewrites the plant references of a note owned by userID.
func (r *NoteRepo) SetPlantIDs(_ context.Context, id, userID ident.ID, plantIDs []ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notes[id]
	if !ok || cur.UserID != userID {
		return 0, nil
	}
	cur.PlantIDs = append(make([]ident.ID, 0, len(plantIDs)), plantIDs...)
	cur.UpdatedAt = time.Now().UTC()
	r.notes[id] = cur
	return 1, nil
}

// Delete removes a note owned by userID.
func (r *NoteRepo) Delete(_ context.Context, id, userID ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notes[id]
	if !ok || cur.UserID != userID {
		return 0, nil
	}
	delete(r.notes, id)
	return 1, nil
}

// DeleteByIDs removes userID's notes among ids.
func (r *NoteRepo) DeleteByIDs(_ context.Context, ids []ident.ID, userID ident.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id := range idSet(ids) {
		if cur, ok := r.notes[id]; ok && cur.UserID == userID {
			delete(r.notes, id)
			n++
		}
	}
	return n, nil
}

// SetImageSizes overwrites the sizes of one embedded image.
func (r *NoteRepo) SetImageSizes(_ context.Context, noteID, userID ident.ID, imageID string, sizes []model.ImageSize) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.notes[noteID]
	if !ok || cur.UserID != userID || !hasImage(cur, imageID) {
		return 0, nil
	}
	cur.Images = model.CloneImages(cur.Images)
	for i := range cur.Images {
		if cur.Images[i].ID == imageID {
			cur.Images[i].Sizes = append(make([]model.ImageSize, 0, len(sizes)), sizes...)
		}
	}
	cur.UpdatedAt = time.Now().UTC()
	r.notes[noteID] = cur
	return 1, nil
}
