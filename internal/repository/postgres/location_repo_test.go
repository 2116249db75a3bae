package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

var locationColumns = []string{"id", "title", "created_by", "members", "stations", "loc", "created_at", "updated_at"}

func TestLocationRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	owner := ident.New()
	l := &model.LocationDoc{
		ID:        ident.New(),
		Title:     "Yard",
		CreatedBy: owner,
		Members:   map[ident.ID]model.Role{owner: model.RoleOwner},
	}
	members := []byte(`{"` + owner.Hex() + `":"owner"}`)

	mock.ExpectExec(`INSERT INTO locations \(id, title, created_by, members, stations, loc, created_at, updated_at\)`).
		WithArgs(ident.Bytes(l.ID), "Yard", ident.Bytes(owner), members, []byte(`{}`), nil, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), l))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	ctx := context.Background()
	id, owner := ident.New(), ident.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, title, created_by, members, stations, loc, created_at, updated_at FROM locations WHERE id=\$1`).
		WithArgs(ident.Bytes(id)).
		WillReturnRows(pgxmock.NewRows(locationColumns).AddRow(
			ident.Bytes(id), "Yard", ident.Bytes(owner),
			[]byte(`{"`+owner.Hex()+`":"owner"}`),
			[]byte(`{"s1":{"name":"North","enabled":true}}`),
			[]byte(`{"type":"Point","coordinates":[10,20]}`),
			now, now))
	l, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	role, ok := l.RoleOf(owner)
	require.True(t, ok)
	require.Equal(t, model.RoleOwner, role)
	require.Equal(t, "North", l.Stations["s1"].Name)
	require.Equal(t, model.NewPoint(10, 20), *l.Loc)

	mock.ExpectQuery(`FROM locations WHERE id=\$1`).
		WithArgs(ident.Bytes(id)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLocationRepo_GetByMember(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	user := ident.New()

	mock.ExpectQuery(`FROM locations WHERE members \? \$1 ORDER BY title, id`).
		WithArgs(user.Hex()).
		WillReturnRows(pgxmock.NewRows(locationColumns))
	out, err := r.GetByMember(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestLocationRepo_Update_OwnerScoped(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	owner, other := ident.New(), ident.New()
	l := &model.LocationDoc{ID: ident.New(), Title: "New", Members: map[ident.ID]model.Role{owner: model.RoleOwner}}
	members := []byte(`{"` + owner.Hex() + `":"owner"}`)

	mock.ExpectExec(`UPDATE locations SET title = \$3, members = \$4, stations = \$5, updated_at = \$6 WHERE id = \$1 AND members->>\$2 = 'owner'`).
		WithArgs(ident.Bytes(l.ID), owner.Hex(), "New", members, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	n, err := r.Update(context.Background(), l, owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	mock.ExpectExec(`UPDATE locations`).
		WithArgs(ident.Bytes(l.ID), other.Hex(), "New", members, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	n, err = r.Update(context.Background(), l, other)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLocationRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	id, owner := ident.New(), ident.New()

	mock.ExpectExec(`DELETE FROM locations WHERE id = \$1 AND members->>\$2 = 'owner'`).
		WithArgs(ident.Bytes(id), owner.Hex()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	n, err := r.Delete(context.Background(), id, owner)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestLocationRepo_SetLocIfAbsent(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	ctx := context.Background()
	id := ident.New()
	p := model.NewPoint(1, 2)
	arg := []byte(`{"type":"Point","coordinates":[1,2]}`)

	// already set: the stored point wins
	mock.ExpectQuery(`UPDATE locations SET loc = COALESCE\(loc, \$2\) WHERE id = \$1 RETURNING loc`).
		WithArgs(ident.Bytes(id), arg).
		WillReturnRows(pgxmock.NewRows([]string{"loc"}).AddRow([]byte(`{"type":"Point","coordinates":[10,20]}`)))
	got, err := r.SetLocIfAbsent(ctx, id, p)
	require.NoError(t, err)
	require.Equal(t, model.NewPoint(10, 20), got)

	mock.ExpectQuery(`UPDATE locations SET loc = COALESCE`).
		WithArgs(ident.Bytes(id), arg).
		WillReturnRows(pgxmock.NewRows([]string{"loc"}).AddRow(arg))
	got, err = r.SetLocIfAbsent(ctx, id, p)
	require.NoError(t, err)
	require.Equal(t, p, got)

	mock.ExpectQuery(`UPDATE locations SET loc = COALESCE`).
		WithArgs(ident.Bytes(id), arg).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.SetLocIfAbsent(ctx, id, p)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLocationRepo_ListWithoutOwner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLocationRepo(db)
	id, member := ident.New(), ident.New()
	now := time.Now()

	mock.ExpectQuery(`FROM locations WHERE NOT EXISTS \(SELECT 1 FROM jsonb_each_text\(members\) m WHERE m.value = 'owner'\)`).
		WillReturnRows(pgxmock.NewRows(locationColumns).AddRow(
			ident.Bytes(id), "Orphan", nil, []byte(`{"`+member.Hex()+`":"member"}`), nil, nil, now, now))
	out, err := r.ListWithoutOwner(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, out[0].HasOwner())
	require.True(t, out[0].CreatedBy.IsZero())
}
