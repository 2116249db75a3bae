package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/geocache"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository"
	"github.com/gardenjournal/gardenjournal/internal/repository/memory"
)

var errStore = errors.New("store unavailable")

// fixture wires every service over one in-memory store with a seeded
// location holding an owner, a manager and a member.
type fixture struct {
	store     *memory.Store
	geo       *geocache.Memory
	auth      *RoleChecker
	plants    *PlantServiceImpl
	notes     *NoteServiceImpl
	locations *LocationServiceImpl
	users     *UserServiceImpl

	owner, manager, member, stranger string
	locationID                       string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{store: memory.New(), geo: geocache.NewMemory()}
	f.auth = NewRoleChecker(f.store.Locations, nil)
	f.plants = NewPlantService(f.store.Plants, f.store.Notes, f.store.Locations, f.auth, f.geo, opts...)
	f.notes = NewNoteService(f.store.Notes, f.store.Plants, opts...)
	f.locations = NewLocationService(f.store.Locations, f.store.Plants, f.auth, opts...)
	f.users = NewUserService(f.store.Users, f.store.Locations, opts...)

	owner, manager, member := ident.New(), ident.New(), ident.New()
	loc := &model.LocationDoc{
		ID:        ident.New(),
		Title:     "Back Yard",
		CreatedBy: owner,
		Members: map[ident.ID]model.Role{
			owner:   model.RoleOwner,
			manager: model.RoleManager,
			member:  model.RoleMember,
		},
	}
	require.NoError(t, f.store.Locations.Create(context.Background(), loc))

	f.owner = owner.Hex()
	f.manager = manager.Hex()
	f.member = member.Hex()
	f.stranger = ident.New().Hex()
	f.locationID = loc.ID.Hex()
	return f
}

func (f *fixture) plant(t *testing.T, userID, title string, loc *model.GeoPoint) model.Plant {
	t.Helper()
	p, err := f.plants.Create(context.Background(),
		model.Plant{UserID: userID, LocationID: f.locationID, Title: title, Loc: loc}, userID)
	require.NoError(t, err)
	return *p
}

func (f *fixture) note(t *testing.T, userID string, date int, plantIDs ...string) model.Note {
	t.Helper()
	n, err := f.notes.Create(context.Background(),
		model.Note{Date: date, Note: "watered", PlantIDs: plantIDs}, userID)
	require.NoError(t, err)
	return *n
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// failingNotes fails every note write; reads fall through to the store.
type failingNotes struct {
	repository.NoteRepository
}

var _ repository.NoteRepository = (*failingNotes)(nil)

func (failingNotes) DeleteByIDs(context.Context, []ident.ID, ident.ID) (int64, error) {
	return 0, errStore
}
func (failingNotes) SetPlantIDs(context.Context, ident.ID, ident.ID, []ident.ID) (int64, error) {
	return 0, errStore
}
func (failingNotes) Update(context.Context, *model.NoteDoc) (int64, error) { return 0, errStore }

// failingLocations fails every location read.
type failingLocations struct {
	repository.LocationRepository
}

var _ repository.LocationRepository = (*failingLocations)(nil)

func (failingLocations) GetByID(context.Context, ident.ID) (*model.LocationDoc, error) {
	return nil, errStore
}

func TestIsFault(t *testing.T) {
	t.Parallel()

	require.False(t, isFault(nil))
	require.False(t, isFault(errs.ErrNotFound))
	require.False(t, isFault(validation("x")))
	require.False(t, isFault(errors.Join(errs.ErrUnauthorized, errStore)))
	require.True(t, isFault(errStore))
}

func TestFaultsAreLoggedAndReturned(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.ErrorLevel)
	f := newFixture(t)
	p := f.plant(t, f.owner, "Fig", nil)
	f.note(t, f.owner, 20240101, p.ID)

	svc := NewPlantService(f.store.Plants, failingNotes{f.store.Notes}, f.store.Locations, f.auth, f.geo, WithLogger(log))
	_, err := svc.Delete(context.Background(), p.ID, f.owner)
	require.ErrorIs(t, err, errStore)

	entries := logs.FilterMessage("plant.delete failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, p.ID, fields["plant_id"])
	require.Equal(t, f.owner, fields["user_id"])
	require.Equal(t, "plant.delete", fields["op"])

	// the plant survives a failed cascade so the call can be retried
	_, err = f.plants.GetByID(context.Background(), p.ID, f.owner)
	require.NoError(t, err)
	n, err := f.plants.Delete(context.Background(), p.ID, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestExpectedOutcomesAreNotLogged(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.ErrorLevel)
	f := newFixture(t, WithLogger(log))

	_, err := f.plants.GetByID(context.Background(), ident.New().Hex(), f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.plants.Create(context.Background(),
		model.Plant{UserID: f.member, LocationID: f.locationID, Title: "Fig"}, f.member)
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.notes.Update(context.Background(), model.Note{Note: "x"}, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)

	require.Zero(t, logs.Len())
}

func TestNoteUpdate_FaultPropagates(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.ErrorLevel)
	f := newFixture(t)
	n := f.note(t, f.owner, 20240101)

	svc := NewNoteService(failingNotes{f.store.Notes}, f.store.Plants, WithLogger(log))
	n.Note = "pruned"
	_, err := svc.Update(context.Background(), n, f.owner)
	require.ErrorIs(t, err, errStore)
	require.Equal(t, 1, logs.FilterMessage("note.update failed").Len())
}
