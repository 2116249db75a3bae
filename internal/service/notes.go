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

// DefaultFeedLimit is the feed size used when the caller asks for none.
const DefaultFeedLimit = 50

// NoteService defines note lifecycle operations.
type NoteService interface {
	// Create inserts a note owned by userID.
	Create(ctx context.Context, n model.Note, userID string) (*model.Note, error)
	// Upsert updates the note when its id exists, otherwise creates it.
	Upsert(ctx context.Context, n model.Note, userID string) (*model.Note, error)
	// Update replaces a note owned by userID.
	Update(ctx context.Context, n model.Note, userID string) (*model.Note, error)
	// Delete removes a note owned by userID and returns the count removed.
	Delete(ctx context.Context, id, userID string) (int64, error)
	// AddImageSizes records the generated sizes of one uploaded image.
	AddImageSizes(ctx context.Context, u model.ImageSizesUpdate) error
	// GetByID returns a single note.
	GetByID(ctx context.Context, id string) (*model.Note, error)
	// GetByIDs returns notes by id, date ascending.
	GetByIDs(ctx context.Context, ids []string) ([]model.Note, error)
	// GetByPlantID returns a plant's notes, date ascending.
	GetByPlantID(ctx context.Context, plantID string) ([]model.Note, error)
	// GetByPlantIDs returns notes referencing any of plantIDs, date ascending.
	GetByPlantIDs(ctx context.Context, plantIDs []string) ([]model.Note, error)
	// GetByImageID returns the note carrying an image.
	GetByImageID(ctx context.Context, imageID string) (*model.Note, error)
	// GetLatestWithPlants returns the public feed: newest notes with plant titles.
	GetLatestWithPlants(ctx context.Context, limit int) ([]model.NoteWithPlants, error)
}

// NoteServiceImpl implements NoteService.
type NoteServiceImpl struct {
	base
	notes  repository.NoteRepository
	plants repository.PlantRepository
}

var _ NoteService = (*NoteServiceImpl)(nil)

// NewNoteService constructs NoteService.
func NewNoteService(notes repository.NoteRepository, plants repository.PlantRepository, opts ...Option) *NoteServiceImpl {
	return &NoteServiceImpl{base: newBase(opts), notes: notes, plants: plants}
}

// Create inserts a note. An empty plant list is accepted and logged.
func (s *NoteServiceImpl) Create(ctx context.Context, n model.Note, userID string) (_ *model.Note, err error) {
	defer s.track("note.create", time.Now(), &err, zap.String("note_id", n.ID), zap.String("user_id", userID))
	return s.create(ctx, n, userID)
}

func (s *NoteServiceImpl) create(ctx context.Context, n model.Note, userID string) (*model.Note, error) {
	if userID == "" {
		return nil, validation("missing userId")
	}
	n.UserID = userID
	if n.PlantIDs == nil {
		n.PlantIDs = []string{}
	}
	doc, err := model.NoteToDoc(n)
	if err != nil {
		return nil, err
	}
	if doc.ID.IsZero() {
		doc.ID = ident.New()
	}
	if len(doc.PlantIDs) == 0 {
		s.log.Warn("note created without plants",
			zap.String("note_id", ident.ToExternal(doc.ID)), zap.String("user_id", userID))
	}
	if err := s.notes.Create(ctx, &doc); err != nil {
		return nil, err
	}
	out := model.NoteFromDoc(doc)
	return &out, nil
}

// Upsert routes to update when a note with n.ID exists and to create otherwise.
// Clients generate note ids, so the save action does not know which applies.
func (s *NoteServiceImpl) Upsert(ctx context.Context, n model.Note, userID string) (_ *model.Note, err error) {
	defer s.track("note.upsert", time.Now(), &err, zap.String("note_id", n.ID), zap.String("user_id", userID))

	if n.ID == "" {
		return s.create(ctx, n, userID)
	}
	id, err := ident.ToInternal(n.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.notes.GetByID(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return s.create(ctx, n, userID)
	case err != nil:
		return nil, err
	}
	return s.update(ctx, n, userID)
}

// Update replaces a note's mutable fields, scoped by id and userID.
func (s *NoteServiceImpl) Update(ctx context.Context, n model.Note, userID string) (_ *model.Note, err error) {
	defer s.track("note.update", time.Now(), &err, zap.String("note_id", n.ID), zap.String("user_id", userID))
	return s.update(ctx, n, userID)
}

func (s *NoteServiceImpl) update(ctx context.Context, n model.Note, userID string) (*model.Note, error) {
	if userID == "" {
		return nil, validation("missing userId")
	}
	if n.ID == "" {
		return nil, validation("missing _id")
	}
	n.UserID = userID
	if n.PlantIDs == nil {
		n.PlantIDs = []string{}
	}
	doc, err := model.NoteToDoc(n)
	if err != nil {
		return nil, err
	}
	matched, err := s.notes.Update(ctx, &doc)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errs.ErrNotFound
	}
	out := model.NoteFromDoc(doc)
	return &out, nil
}

// Delete removes a note scoped by id and userID. Repeating the call returns 0.
func (s *NoteServiceImpl) Delete(ctx context.Context, id, userID string) (_ int64, err error) {
	defer s.track("note.delete", time.Now(), &err, zap.String("note_id", id), zap.String("user_id", userID))

	uid, err := ident.ToInternal(userID)
	if err != nil {
		return 0, validation("malformed userId")
	}
	nid, err := ident.ToInternal(id)
	if err != nil {
		return 0, nil
	}
	return s.notes.Delete(ctx, nid, uid)
}

// AddImageSizes overwrites the size list of one embedded image. It fails
// with ErrNotFound unless the note, its owner and the image all match.
func (s *NoteServiceImpl) AddImageSizes(ctx context.Context, u model.ImageSizesUpdate) (err error) {
	defer s.track("note.image_sizes", time.Now(), &err,
		zap.String("note_id", u.NoteID), zap.String("user_id", u.UserID), zap.String("image_id", u.ImageID))

	if err := u.Validate(); err != nil {
		return err
	}
	nid, err := ident.ToInternal(u.NoteID)
	if err != nil {
		return err
	}
	uid, err := ident.ToInternal(u.UserID)
	if err != nil {
		return err
	}
	matched, err := s.notes.SetImageSizes(ctx, nid, uid, u.ImageID, u.Sizes)
	if err != nil {
		return err
	}
	if matched == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetByID returns one note; a malformed id is not found.
func (s *NoteServiceImpl) GetByID(ctx context.Context, id string) (_ *model.Note, err error) {
	defer s.track("note.get", time.Now(), &err, zap.String("note_id", id))

	nid, err := ident.ToInternal(id)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	doc, err := s.notes.GetByID(ctx, nid)
	if err != nil {
		return nil, err
	}
	out := model.NoteFromDoc(*doc)
	return &out, nil
}

// GetByIDs returns the notes among ids; malformed ids are skipped.
func (s *NoteServiceImpl) GetByIDs(ctx context.Context, ids []string) (_ []model.Note, err error) {
	defer s.track("note.get_many", time.Now(), &err, zap.Int("count", len(ids)))

	docs, err := s.notes.GetByIDs(ctx, ident.ToInternalValid(ids))
	if err != nil {
		return nil, err
	}
	return notesFromDocs(docs), nil
}

// GetByPlantID returns the notes of one plant.
func (s *NoteServiceImpl) GetByPlantID(ctx context.Context, plantID string) ([]model.Note, error) {
	return s.GetByPlantIDs(ctx, []string{plantID})
}

// GetByPlantIDs returns notes referencing any of plantIDs. No match is an
// empty slice, not an error.
func (s *NoteServiceImpl) GetByPlantIDs(ctx context.Context, plantIDs []string) (_ []model.Note, err error) {
	defer s.track("note.by_plants", time.Now(), &err, zap.Strings("plant_ids", plantIDs))

	docs, err := s.notes.GetByPlantIDs(ctx, ident.ToInternalValid(plantIDs))
	if err != nil {
		return nil, err
	}
	return notesFromDocs(docs), nil
}

// GetByImageID returns the note carrying imageID.
func (s *NoteServiceImpl) GetByImageID(ctx context.Context, imageID string) (_ *model.Note, err error) {
	defer s.track("note.by_image", time.Now(), &err, zap.String("image_id", imageID))

	if imageID == "" {
		return nil, errs.ErrNotFound
	}
	doc, err := s.notes.GetByImageID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	out := model.NoteFromDoc(*doc)
	return &out, nil
}

// GetLatestWithPlants returns the newest notes across all users joined with
// the titles of their plants. This is the public feed and is not scoped.
func (s *NoteServiceImpl) GetLatestWithPlants(ctx context.Context, limit int) (_ []model.NoteWithPlants, err error) {
	defer s.track("note.latest", time.Now(), &err, zap.Int("limit", limit))

	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	docs, err := s.notes.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[ident.ID]struct{})
	var plantIDs []ident.ID
	for _, d := range docs {
		for _, id := range d.PlantIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				plantIDs = append(plantIDs, id)
			}
		}
	}
	plants, err := s.plants.GetByIDs(ctx, plantIDs)
	if err != nil {
		return nil, err
	}
	titles := make(map[ident.ID]string, len(plants))
	for _, p := range plants {
		titles[p.ID] = p.Title
	}

	out := make([]model.NoteWithPlants, 0, len(docs))
	for _, d := range docs {
		entry := model.NoteWithPlants{Note: model.NoteFromDoc(d), Plants: make([]model.PlantTitle, 0, len(d.PlantIDs))}
		for _, id := range d.PlantIDs {
			if title, ok := titles[id]; ok {
				entry.Plants = append(entry.Plants, model.PlantTitle{ID: ident.ToExternal(id), Title: title})
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func notesFromDocs(docs []model.NoteDoc) []model.Note {
	out := make([]model.Note, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.NoteFromDoc(d))
	}
	return out
}
