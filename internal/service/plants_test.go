package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

func point(lng, lat float64) *model.GeoPoint {
	p := model.NewPoint(lng, lat)
	return &p
}

func TestPlantCreate_RoleGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		user   string
		locID  string
		wantOK bool
	}{
		{"owner", f.owner, f.locationID, true},
		{"manager", f.manager, f.locationID, true},
		{"member", f.member, f.locationID, false},
		{"stranger", f.stranger, f.locationID, false},
		{"unknown location", f.owner, ident.New().Hex(), false},
		{"malformed location", f.owner, "yard", false},
	} {
		p, err := f.plants.Create(ctx, model.Plant{UserID: tc.user, LocationID: tc.locID, Title: "Fig"}, tc.user)
		if !tc.wantOK {
			require.ErrorIs(t, err, errs.ErrForbidden, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		require.True(t, ident.IsValid(p.ID), tc.name)
	}

	all, err := f.plants.GetByLocationID(ctx, f.locationID, f.owner)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestPlantCreate_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	bad := 20241350

	_, err := f.plants.Create(ctx, model.Plant{UserID: f.owner, Title: "Fig"}, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.plants.Create(ctx, model.Plant{LocationID: f.locationID, Title: "Fig"}, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.plants.Create(ctx, model.Plant{UserID: f.owner, LocationID: f.locationID, PlantedDate: &bad}, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.plants.Create(ctx, model.Plant{UserID: f.owner, LocationID: f.locationID, TerminatedReason: "eaten"}, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestPlantGetByID_NotesByDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Fig", nil)
	later := f.note(t, f.owner, 20240301, p.ID)
	earlier := f.note(t, f.manager, 20240101, p.ID)

	got, err := f.plants.GetByID(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.Equal(t, []string{earlier.ID, later.ID}, got.Notes)

	_, err = f.plants.GetByID(ctx, "not-an-id", f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.plants.GetByID(ctx, ident.New().Hex(), f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlantGetByIDs_SkipsMalformed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.plant(t, f.owner, "Apple", nil)
	b := f.plant(t, f.owner, "Basil", nil)

	got, err := f.plants.GetByIDs(context.Background(), []string{b.ID, "junk", a.ID, ident.New().Hex()}, f.owner)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Apple", got[0].Title)
	require.Equal(t, "Basil", got[1].Title)

	none, err := f.plants.GetByLocationID(context.Background(), "junk", f.owner)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestPlantUpdate_ScopedToOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Fig", nil)

	hijack := p
	hijack.UserID = f.manager
	hijack.Title = "Mine now"
	_, err := f.plants.Update(ctx, hijack, f.manager)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := f.plants.GetByID(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.Equal(t, "Fig", got.Title)
	require.Equal(t, f.owner, got.UserID)

	p.Title = "Black Mission Fig"
	updated, err := f.plants.Update(ctx, p, f.owner)
	require.NoError(t, err)
	require.Equal(t, "Black Mission Fig", updated.Title)

	noLoc := p
	noLoc.LocationID = ""
	_, err = f.plants.Update(ctx, noLoc, f.owner)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestPlantUpdate_MoveNeedsRoleAtTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Fig", nil)

	owner, err := ident.ToInternal(f.owner)
	require.NoError(t, err)
	stranger, err := ident.ToInternal(f.stranger)
	require.NoError(t, err)
	elsewhere := func(role model.Role) string {
		l := &model.LocationDoc{
			ID:        ident.New(),
			Title:     "Elsewhere",
			CreatedBy: stranger,
			Members:   map[ident.ID]model.Role{stranger: model.RoleOwner},
		}
		if role != "" {
			l.Members[owner] = role
		}
		require.NoError(t, f.store.Locations.Create(ctx, l))
		return l.ID.Hex()
	}

	for name, role := range map[string]model.Role{"no role": "", "member": model.RoleMember} {
		target := elsewhere(role)
		moved := p
		moved.LocationID = target
		_, err := f.plants.Update(ctx, moved, f.owner)
		require.ErrorIs(t, err, errs.ErrForbidden, name)

		there, err := f.plants.GetByLocationID(ctx, target, f.owner)
		require.NoError(t, err, name)
		require.Empty(t, there, name)
	}

	got, err := f.plants.GetByID(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.Equal(t, f.locationID, got.LocationID)

	target := elsewhere(model.RoleManager)
	moved := p
	moved.LocationID = target
	updated, err := f.plants.Update(ctx, moved, f.owner)
	require.NoError(t, err)
	require.Equal(t, target, updated.LocationID)

	// edits in place skip the target check
	m := f.plant(t, f.manager, "Basil", nil)
	m.Title = "Thai Basil"
	_, err = f.plants.Update(ctx, m, f.manager)
	require.NoError(t, err)

	_, err = f.plants.Update(ctx, model.Plant{ID: ident.New().Hex(), UserID: f.owner, LocationID: f.locationID}, f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlantDelete_Cascade(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Pear", nil)
	q := f.plant(t, f.owner, "Quince", nil)
	n1 := f.note(t, f.owner, 20240101, p.ID)
	n2 := f.note(t, f.owner, 20240102, p.ID, q.ID)
	n3 := f.note(t, f.owner, 20240103, q.ID)

	removed, err := f.plants.Delete(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = f.notes.GetByID(ctx, n1.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := f.notes.GetByID(ctx, n2.ID)
	require.NoError(t, err)
	require.Equal(t, []string{q.ID}, got.PlantIDs)

	got, err = f.notes.GetByID(ctx, n3.ID)
	require.NoError(t, err)
	require.Equal(t, []string{q.ID}, got.PlantIDs)

	_, err = f.plants.GetByID(ctx, p.ID, f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)

	removed, err = f.plants.Delete(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestPlantDelete_OtherUsersNotesAndPlantsUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t, f.owner, "Pear", nil)
	theirs := f.note(t, f.manager, 20240101, p.ID)

	removed, err := f.plants.Delete(ctx, p.ID, f.manager)
	require.NoError(t, err)
	require.Zero(t, removed)
	_, err = f.plants.GetByID(ctx, p.ID, f.owner)
	require.NoError(t, err)

	removed, err = f.plants.Delete(ctx, p.ID, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	got, err := f.notes.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	require.Equal(t, []string{p.ID}, got.PlantIDs)

	_, err = f.plants.Delete(ctx, p.ID, "junk")
	require.ErrorIs(t, err, errs.ErrValidation)
	removed, err = f.plants.Delete(ctx, "junk", f.owner)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestPlantRead_RebasedForNonOwners(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first := f.plant(t, f.owner, "Apple", point(10, 20))
	require.Equal(t, point(10, 20), first.Loc)

	lid, err := ident.ToInternal(f.locationID)
	require.NoError(t, err)
	stored, err := f.store.Locations.GetByID(ctx, lid)
	require.NoError(t, err)
	require.Equal(t, point(10, 20), stored.Loc)

	second := f.plant(t, f.owner, "Basil", point(12, 25))

	got, err := f.plants.GetByID(ctx, second.ID, f.member)
	require.NoError(t, err)
	require.Equal(t, point(2, 5), got.Loc)

	got, err = f.plants.GetByID(ctx, first.ID, f.member)
	require.NoError(t, err)
	require.Equal(t, point(0, 0), got.Loc)

	got, err = f.plants.GetByID(ctx, second.ID, f.owner)
	require.NoError(t, err)
	require.Equal(t, point(12, 25), got.Loc)

	anon, err := f.plants.GetByLocationID(ctx, f.locationID, "")
	require.NoError(t, err)
	require.Equal(t, point(0, 0), anon[0].Loc)
	require.Equal(t, point(2, 5), anon[1].Loc)
}

func TestPlantRead_ConcurrentFirstPositionsAgree(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.plants.Create(ctx, model.Plant{
				UserID:     f.owner,
				LocationID: f.locationID,
				Title:      "Plant",
				Loc:        point(float64(i), float64(i)),
			}, f.owner)
		}()
	}
	wg.Wait()
	for _, err := range results {
		require.NoError(t, err)
	}

	lid, err := ident.ToInternal(f.locationID)
	require.NoError(t, err)
	stored, err := f.store.Locations.GetByID(ctx, lid)
	require.NoError(t, err)
	require.NotNil(t, stored.Loc)
	cached, ok := f.geo.Get(lid)
	require.True(t, ok)
	require.Equal(t, *stored.Loc, cached)
}

func TestPlantRead_MissingLocationHidesPosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner, err := ident.ToInternal(f.owner)
	require.NoError(t, err)
	doc := &model.PlantDoc{ID: ident.New(), UserID: owner, LocationID: ident.New(), Title: "Stray", Loc: point(3, 4)}
	require.NoError(t, f.store.Plants.Create(ctx, doc))

	got, err := f.plants.GetByID(ctx, doc.ID.Hex(), f.member)
	require.NoError(t, err)
	require.Nil(t, got.Loc)

	got, err = f.plants.GetByID(ctx, doc.ID.Hex(), f.owner)
	require.NoError(t, err)
	require.Equal(t, point(3, 4), got.Loc)
}
