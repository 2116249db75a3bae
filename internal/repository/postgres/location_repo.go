package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// LocationRepo implements LocationRepository using PostgreSQL.
// Members are stored as a JSONB object keyed by the hex user id.
type LocationRepo struct{ db *DB }

// NewLocationRepo constructs a location repository.
func NewLocationRepo(db *DB) *LocationRepo { return &LocationRepo{db: db} }

const locationCols = `id, title, created_by, members, stations, loc, created_at, updated_at`

func scanLocation(s scanner) (*model.LocationDoc, error) {
	var (
		l                        model.LocationDoc
		id, createdBy            []byte
		members, stations, point []byte
	)
	if err := s.Scan(&id, &l.Title, &createdBy, &members, &stations, &point, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if l.ID, err = ident.FromBytes(id); err != nil {
		return nil, err
	}
	if len(createdBy) > 0 {
		if l.CreatedBy, err = ident.FromBytes(createdBy); err != nil {
			return nil, fmt.Errorf("created_by: %w", err)
		}
	}
	if l.Members, err = membersScan(members); err != nil {
		return nil, err
	}
	if l.Stations, err = stationsScan(stations); err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	if l.Loc, err = jsonScan[model.GeoPoint](point); err != nil {
		return nil, fmt.Errorf("loc: %w", err)
	}
	return &l, nil
}

func (r *LocationRepo) many(ctx context.Context, q string, args ...any) ([]model.LocationDoc, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LocationDoc, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func locationArgs(l *model.LocationDoc) (members, stations []byte, loc any, err error) {
	if members, err = membersArg(l.Members); err != nil {
		return nil, nil, nil, err
	}
	if stations, err = stationsArg(l.Stations); err != nil {
		return nil, nil, nil, err
	}
	if loc, err = jsonArg(l.Loc); err != nil {
		return nil, nil, nil, err
	}
	return members, stations, loc, nil
}

// Create inserts a new location row.
func (r *LocationRepo) Create(ctx context.Context, l *model.LocationDoc) error {
	const q = `
INSERT INTO locations (id, title, created_by, members, stations, loc, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	members, stations, loc, err := locationArgs(l)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	_, err = r.db.Pool.Exec(ctx, q, ident.Bytes(l.ID), l.Title, ident.Bytes(l.CreatedBy), members, stations, loc, now, now)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a location by ID.
func (r *LocationRepo) GetByID(ctx context.Context, id ident.ID) (*model.LocationDoc, error) {
	const q = `SELECT ` + locationCols + ` FROM locations WHERE id=$1`
	l, err := scanLocation(r.db.Pool.QueryRow(ctx, q, ident.Bytes(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return l, err
}

// GetByIDs selects locations by ID.
func (r *LocationRepo) GetByIDs(ctx context.Context, ids []ident.ID) ([]model.LocationDoc, error) {
	if len(ids) == 0 {
		return []model.LocationDoc{}, nil
	}
	const q = `SELECT ` + locationCols + ` FROM locations WHERE id = ANY($1) ORDER BY title, id`
	return r.many(ctx, q, ident.BytesMany(ids))
}

// GetByMember selects the locations listing userID among their members.
func (r *LocationRepo) GetByMember(ctx context.Context, userID ident.ID) ([]model.LocationDoc, error) {
	const q = `SELECT ` + locationCols + ` FROM locations WHERE members ? $1 ORDER BY title, id`
	return r.many(ctx, q, ident.ToExternal(userID))
}

// List selects every location.
func (r *LocationRepo) List(ctx context.Context) ([]model.LocationDoc, error) {
	const q = `SELECT ` + locationCols + ` FROM locations ORDER BY title, id`
	return r.many(ctx, q)
}

// ListWithoutOwner selects locations whose members map holds no owner.
func (r *LocationRepo) ListWithoutOwner(ctx context.Context) ([]model.LocationDoc, error) {
	const q = `
SELECT ` + locationCols + ` FROM locations
WHERE NOT EXISTS (SELECT 1 FROM jsonb_each_text(members) m WHERE m.value = 'owner')
ORDER BY title, id`
	return r.many(ctx, q)
}

// Update replaces title, members and stations when ownerID holds the owner
// role. loc is owned by SetLocIfAbsent and never written here.
func (r *LocationRepo) Update(ctx context.Context, l *model.LocationDoc, ownerID ident.ID) (int64, error) {
	const q = `
UPDATE locations
SET title = $3, members = $4, stations = $5, updated_at = $6
WHERE id = $1 AND members->>$2 = 'owner'`
	members, stations, _, err := locationArgs(l)
	if err != nil {
		return 0, err
	}
	l.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(l.ID), ident.ToExternal(ownerID), l.Title, members, stations, l.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a location when ownerID holds the owner role.
func (r *LocationRepo) Delete(ctx context.Context, id, ownerID ident.ID) (int64, error) {
	const q = `DELETE FROM locations WHERE id = $1 AND members->>$2 = 'owner'`
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(id), ident.ToExternal(ownerID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetLocIfAbsent stores p unless the location already has a reference
// coordinate. The statement is a single conditional write, so concurrent
// callers all observe the first coordinate persisted.
func (r *LocationRepo) SetLocIfAbsent(ctx context.Context, id ident.ID, p model.GeoPoint) (model.GeoPoint, error) {
	const q = `
UPDATE locations
SET loc = COALESCE(loc, $2)
WHERE id = $1
RETURNING loc`
	arg, err := json.Marshal(p)
	if err != nil {
		return model.GeoPoint{}, err
	}
	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, q, ident.Bytes(id), arg).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeoPoint{}, errs.ErrNotFound
		}
		return model.GeoPoint{}, err
	}
	got, err := jsonScan[model.GeoPoint](raw)
	if err != nil {
		return model.GeoPoint{}, err
	}
	if got == nil {
		return p, nil
	}
	return *got, nil
}
