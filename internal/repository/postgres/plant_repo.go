package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// PlantRepo implements PlantRepository using PostgreSQL.
type PlantRepo struct{ db *DB }

// NewPlantRepo constructs a plant repository.
func NewPlantRepo(db *DB) *PlantRepo { return &PlantRepo{db: db} }

const plantCols = `id, user_id, location_id, title, common_name, botanical_name, description,
purchase_date, planted_date, terminated_date, terminated_reason, terminated_description,
price, loc, created_at, updated_at`

func scanPlant(s scanner) (*model.PlantDoc, error) {
	var (
		p                 model.PlantDoc
		id, userID, locID []byte
		reason            string
		point             []byte
	)
	err := s.Scan(&id, &userID, &locID, &p.Title, &p.CommonName, &p.BotanicalName, &p.Description,
		&p.PurchaseDate, &p.PlantedDate, &p.TerminatedDate, &reason, &p.TerminatedDescription,
		&p.Price, &point, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = ident.FromBytes(id); err != nil {
		return nil, err
	}
	if p.UserID, err = ident.FromBytes(userID); err != nil {
		return nil, fmt.Errorf("user_id: %w", err)
	}
	if p.LocationID, err = ident.FromBytes(locID); err != nil {
		return nil, fmt.Errorf("location_id: %w", err)
	}
	p.TerminatedReason = model.TerminationReason(reason)
	if p.Loc, err = jsonScan[model.GeoPoint](point); err != nil {
		return nil, fmt.Errorf("loc: %w", err)
	}
	return &p, nil
}

func (r *PlantRepo) many(ctx context.Context, q string, args ...any) ([]model.PlantDoc, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.PlantDoc, 0)
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a new plant row.
func (r *PlantRepo) Create(ctx context.Context, p *model.PlantDoc) error {
	const q = `
INSERT INTO plants (id, user_id, location_id, title, common_name, botanical_name, description,
	purchase_date, planted_date, terminated_date, terminated_reason, terminated_description,
	price, loc, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	loc, err := jsonArg(p.Loc)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = r.db.Pool.Exec(ctx, q,
		ident.Bytes(p.ID), ident.Bytes(p.UserID), ident.Bytes(p.LocationID),
		p.Title, p.CommonName, p.BotanicalName, p.Description,
		p.PurchaseDate, p.PlantedDate, p.TerminatedDate, string(p.TerminatedReason), p.TerminatedDescription,
		p.Price, loc, now, now)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a plant by ID.
func (r *PlantRepo) GetByID(ctx context.Context, id ident.ID) (*model.PlantDoc, error) {
	const q = `SELECT ` + plantCols + ` FROM plants WHERE id=$1`
	p, err := scanPlant(r.db.Pool.QueryRow(ctx, q, ident.Bytes(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// GetByIDs selects plants by ID, title ascending.
func (r *PlantRepo) GetByIDs(ctx context.Context, ids []ident.ID) ([]model.PlantDoc, error) {
	if len(ids) == 0 {
		return []model.PlantDoc{}, nil
	}
	const q = `SELECT ` + plantCols + ` FROM plants WHERE id = ANY($1) ORDER BY title, id`
	return r.many(ctx, q, ident.BytesMany(ids))
}

// GetByLocationID selects a location's plants, title ascending.
func (r *PlantRepo) GetByLocationID(ctx context.Context, locationID ident.ID) ([]model.PlantDoc, error) {
	const q = `SELECT ` + plantCols + ` FROM plants WHERE location_id=$1 ORDER BY title, id`
	return r.many(ctx, q, ident.Bytes(locationID))
}

// IDsByLocationIDs groups plant ids by location id.
func (r *PlantRepo) IDsByLocationIDs(ctx context.Context, locationIDs []ident.ID) (map[ident.ID][]ident.ID, error) {
	out := make(map[ident.ID][]ident.ID)
	if len(locationIDs) == 0 {
		return out, nil
	}
	const q = `SELECT location_id, id FROM plants WHERE location_id = ANY($1) ORDER BY title, id`
	rows, err := r.db.Pool.Query(ctx, q, ident.BytesMany(locationIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var locRaw, idRaw []byte
		if err := rows.Scan(&locRaw, &idRaw); err != nil {
			return nil, err
		}
		loc, err := ident.FromBytes(locRaw)
		if err != nil {
			return nil, err
		}
		id, err := ident.FromBytes(idRaw)
		if err != nil {
			return nil, err
		}
		out[loc] = append(out[loc], id)
	}
	return out, rows.Err()
}

// Update replaces the mutable fields of a plant owned by p.UserID.
func (r *PlantRepo) Update(ctx context.Context, p *model.PlantDoc) (int64, error) {
	const q = `
UPDATE plants
SET location_id = $3, title = $4, common_name = $5, botanical_name = $6, description = $7,
	purchase_date = $8, planted_date = $9, terminated_date = $10, terminated_reason = $11,
	terminated_description = $12, price = $13, loc = $14, updated_at = $15
WHERE id = $1 AND user_id = $2`
	loc, err := jsonArg(p.Loc)
	if err != nil {
		return 0, err
	}
	p.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, q,
		ident.Bytes(p.ID), ident.Bytes(p.UserID), ident.Bytes(p.LocationID),
		p.Title, p.CommonName, p.BotanicalName, p.Description,
		p.PurchaseDate, p.PlantedDate, p.TerminatedDate, string(p.TerminatedReason), p.TerminatedDescription,
		p.Price, loc, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a plant owned by userID.
func (r *PlantRepo) Delete(ctx context.Context, id, userID ident.ID) (int64, error) {
	const q = `DELETE FROM plants WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(id), ident.Bytes(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
