package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

func TestNoteCreate_EmptyPlantsWarns(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.WarnLevel)
	f := newFixture(t, WithLogger(log))

	n, err := f.notes.Create(context.Background(), model.Note{Date: 20240101, Note: "frost"}, f.owner)
	require.NoError(t, err)
	require.NotNil(t, n.PlantIDs)
	require.Empty(t, n.PlantIDs)
	require.Equal(t, f.owner, n.UserID)
	require.Equal(t, 1, logs.FilterMessage("note created without plants").Len())

	_, err = f.notes.Create(context.Background(), model.Note{Note: "x"}, "")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.notes.Create(context.Background(), model.Note{Note: "x", PlantIDs: []string{"bad"}}, f.owner)
	require.ErrorIs(t, err, errs.ErrInvalidID)
}

func TestNoteUpdate_ScopedToOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	n := f.note(t, f.owner, 20240101)

	hijack := n
	hijack.Note = "overwritten"
	_, err := f.notes.Update(ctx, hijack, f.manager)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := f.notes.GetByID(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, "watered", got.Note)
	require.Equal(t, f.owner, got.UserID)

	n.Note = "mulched"
	updated, err := f.notes.Update(ctx, n, f.owner)
	require.NoError(t, err)
	require.Equal(t, "mulched", updated.Note)
}

func TestNoteDelete_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	n := f.note(t, f.owner, 20240101)

	removed, err := f.notes.Delete(ctx, n.ID, f.manager)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = f.notes.Delete(ctx, n.ID, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	removed, err = f.notes.Delete(ctx, n.ID, f.owner)
	require.NoError(t, err)
	require.Zero(t, removed)

	_, err = f.notes.Delete(ctx, n.ID, "junk")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestNoteUpsert_Routes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Fig", nil)
	id := ident.New().Hex()

	created, err := f.notes.Upsert(ctx, model.Note{ID: id, Date: 20240101, Note: "planted", PlantIDs: []string{p.ID}}, f.owner)
	require.NoError(t, err)
	require.Equal(t, id, created.ID)

	updated, err := f.notes.Upsert(ctx, model.Note{ID: id, Date: 20240102, Note: "watered", PlantIDs: []string{p.ID}}, f.owner)
	require.NoError(t, err)
	require.Equal(t, "watered", updated.Note)

	all, err := f.notes.GetByPlantID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 20240102, all[0].Date)

	_, err = f.notes.Upsert(ctx, model.Note{ID: id, Note: "mine"}, f.manager)
	require.ErrorIs(t, err, errs.ErrNotFound)

	fresh, err := f.notes.Upsert(ctx, model.Note{Date: 20240103, Note: "new"}, f.owner)
	require.NoError(t, err)
	require.True(t, ident.IsValid(fresh.ID))
}

func TestNoteGetByPlantIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	none, err := f.notes.GetByPlantIDs(ctx, []string{ident.New().Hex()})
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	a := f.plant(t, f.owner, "Apple", nil)
	b := f.plant(t, f.owner, "Basil", nil)
	n2 := f.note(t, f.owner, 20240202, b.ID)
	n1 := f.note(t, f.owner, 20240101, a.ID)
	f.note(t, f.owner, 20240303)

	got, err := f.notes.GetByPlantIDs(ctx, []string{a.ID, b.ID, "junk"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, n1.ID, got[0].ID)
	require.Equal(t, n2.ID, got[1].ID)

	byIDs, err := f.notes.GetByIDs(ctx, []string{n2.ID, n1.ID})
	require.NoError(t, err)
	require.Equal(t, n1.ID, byIDs[0].ID)
}

func TestNoteAddImageSizes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	n, err := f.notes.Create(ctx, model.Note{
		Date:   20240101,
		Note:   "blossoms",
		Images: []model.Image{{ID: "img-1", Ext: "jpg", OriginalName: "tree.jpg", Size: 2048}},
	}, f.owner)
	require.NoError(t, err)

	sizes := []model.ImageSize{{Name: model.SizeThumb, Width: 100}, {Name: model.SizeMD, Width: 500}}
	require.NoError(t, f.notes.AddImageSizes(ctx, model.ImageSizesUpdate{NoteID: n.ID, UserID: f.owner, ImageID: "img-1", Sizes: sizes}))

	got, err := f.notes.GetByImageID(ctx, "img-1")
	require.NoError(t, err)
	require.Equal(t, n.ID, got.ID)
	require.Equal(t, sizes, got.Images[0].Sizes)

	err = f.notes.AddImageSizes(ctx, model.ImageSizesUpdate{NoteID: n.ID, UserID: f.owner, ImageID: "img-2", Sizes: sizes})
	require.ErrorIs(t, err, errs.ErrNotFound)
	err = f.notes.AddImageSizes(ctx, model.ImageSizesUpdate{NoteID: n.ID, UserID: f.manager, ImageID: "img-1", Sizes: sizes})
	require.ErrorIs(t, err, errs.ErrNotFound)
	err = f.notes.AddImageSizes(ctx, model.ImageSizesUpdate{NoteID: n.ID, UserID: f.owner, ImageID: "img-1",
		Sizes: []model.ImageSize{{Name: "huge", Width: 10}}})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.notes.GetByImageID(ctx, "")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNoteGetLatestWithPlants(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := f.plant(t, f.owner, "Apple", nil)
	b := f.plant(t, f.manager, "Basil", nil)
	f.note(t, f.owner, 20240101, a.ID)
	newest := f.note(t, f.manager, 20240301, b.ID, a.ID, ident.New().Hex())
	f.note(t, f.owner, 20240201)

	feed, err := f.notes.GetLatestWithPlants(ctx, 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Equal(t, newest.ID, feed[0].ID)
	require.Equal(t, []model.PlantTitle{{ID: b.ID, Title: "Basil"}, {ID: a.ID, Title: "Apple"}}, feed[0].Plants)
	require.NotNil(t, feed[1].Plants)
	require.Empty(t, feed[1].Plants)

	all, err := f.notes.GetLatestWithPlants(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
