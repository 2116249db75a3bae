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

// NoteRepo implements NoteRepository using PostgreSQL.
// Plant references live in a BYTEA[] column; images are embedded as JSONB.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

const noteCols = `id, user_id, date, note, plant_ids, metrics, images, created_at, updated_at`

func scanNote(s scanner) (*model.NoteDoc, error) {
	var (
		n               model.NoteDoc
		id, userID      []byte
		plantIDs        [][]byte
		metrics, images []byte
	)
	err := s.Scan(&id, &userID, &n.Date, &n.Note, &plantIDs, &metrics, &images, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n.ID, err = ident.FromBytes(id); err != nil {
		return nil, err
	}
	if n.UserID, err = ident.FromBytes(userID); err != nil {
		return nil, fmt.Errorf("user_id: %w", err)
	}
	if n.PlantIDs, err = ident.FromBytesMany(plantIDs); err != nil {
		return nil, fmt.Errorf("plant_ids: %w", err)
	}
	if n.Metrics, err = jsonScan[model.Metrics](metrics); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if n.Images, err = imagesScan(images); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	return &n, nil
}

func (r *NoteRepo) one(ctx context.Context, q string, args ...any) (*model.NoteDoc, error) {
	n, err := scanNote(r.db.Pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return n, err
}

func (r *NoteRepo) many(ctx context.Context, q string, args ...any) ([]model.NoteDoc, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.NoteDoc, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Create inserts a new note row.
func (r *NoteRepo) Create(ctx context.Context, n *model.NoteDoc) error {
	const q = `
INSERT INTO notes (id, user_id, date, note, plant_ids, metrics, images, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	metrics, err := jsonArg(n.Metrics)
	if err != nil {
		return err
	}
	images, err := imagesArg(n.Images)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	_, err = r.db.Pool.Exec(ctx, q, ident.Bytes(n.ID), ident.Bytes(n.UserID), n.Date, n.Note,
		ident.BytesMany(n.PlantIDs), metrics, images, now, now)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a note by ID.
func (r *NoteRepo) GetByID(ctx context.Context, id ident.ID) (*model.NoteDoc, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE id=$1`
	return r.one(ctx, q, ident.Bytes(id))
}

// GetByIDs selects notes by ID, date ascending.
func (r *NoteRepo) GetByIDs(ctx context.Context, ids []ident.ID) ([]model.NoteDoc, error) {
	if len(ids) == 0 {
		return []model.NoteDoc{}, nil
	}
	const q = `SELECT ` + noteCols + ` FROM notes WHERE id = ANY($1) ORDER BY date, id`
	return r.many(ctx, q, ident.BytesMany(ids))
}

// GetByPlantIDs selects notes referencing any of plantIDs, date ascending.
func (r *NoteRepo) GetByPlantIDs(ctx context.Context, plantIDs []ident.ID) ([]model.NoteDoc, error) {
	if len(plantIDs) == 0 {
		return []model.NoteDoc{}, nil
	}
	const q = `SELECT ` + noteCols + ` FROM notes WHERE plant_ids && $1 ORDER BY date, id`
	return r.many(ctx, q, ident.BytesMany(plantIDs))
}

// GetByPlantAndUser selects userID's notes referencing plantID, date ascending.
func (r *NoteRepo) GetByPlantAndUser(ctx context.Context, plantID, userID ident.ID) ([]model.NoteDoc, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE $1 = ANY(plant_ids) AND user_id = $2 ORDER BY date, id`
	return r.many(ctx, q, ident.Bytes(plantID), ident.Bytes(userID))
}

// GetByImageID selects the note carrying imageID.
func (r *NoteRepo) GetByImageID(ctx context.Context, imageID string) (*model.NoteDoc, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE images @> $1 ORDER BY date, id LIMIT 1`
	match, err := imageMatch(imageID)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, q, match)
}

// Latest selects the newest notes across all users.
func (r *NoteRepo) Latest(ctx context.Context, limit int) ([]model.NoteDoc, error) {
	const q = `SELECT ` + noteCols + ` FROM notes ORDER BY date DESC, id DESC LIMIT $1`
	return r.many(ctx, q, limit)
}

// Update replaces the mutable fields of a note owned by n.UserID.
func (r *NoteRepo) Update(ctx context.Context, n *model.NoteDoc) (int64, error) {
	const q = `
UPDATE notes
SET date = $3, note = $4, plant_ids = $5, metrics = $6, images = $7, updated_at = $8
WHERE id = $1 AND user_id = $2`
	metrics, err := jsonArg(n.Metrics)
	if err != nil {
		return 0, err
	}
	images, err := imagesArg(n.Images)
	if err != nil {
		return 0, err
	}
	n.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(n.ID), ident.Bytes(n.UserID), n.Date, n.Note,
		ident.BytesMany(n.PlantIDs), metrics, images, n.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetPlantIDs rewrites the plant references of a note owned by userID.
func (r *NoteRepo) SetPlantIDs(ctx context.Context, id, userID ident.ID, plantIDs []ident.ID) (int64, error) {
	const q = `UPDATE notes SET plant_ids = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(id), ident.Bytes(userID), ident.BytesMany(plantIDs), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a note owned by userID.
func (r *NoteRepo) Delete(ctx context.Context, id, userID ident.ID) (int64, error) {
	const q = `DELETE FROM notes WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(id), ident.Bytes(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByIDs removes userID's notes among ids.
func (r *NoteRepo) DeleteByIDs(ctx context.Context, ids []ident.ID, userID ident.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `DELETE FROM notes WHERE id = ANY($1) AND user_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, ident.BytesMany(ids), ident.Bytes(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetImageSizes overwrites the sizes of one embedded image. The element is
// matched by its id; every other image is left as stored.
func (r *NoteRepo) SetImageSizes(ctx context.Context, noteID, userID ident.ID, imageID string, sizes []model.ImageSize) (int64, error) {
	const q = `
UPDATE notes
SET images = (
	SELECT jsonb_agg(CASE WHEN img->>'id' = $3 THEN jsonb_set(img, '{sizes}', $4::jsonb) ELSE img END ORDER BY ord)
	FROM jsonb_array_elements(images) WITH ORDINALITY AS t(img, ord)
), updated_at = $6
WHERE id = $1 AND user_id = $2 AND images @> $5`
	if sizes == nil {
		sizes = []model.ImageSize{}
	}
	sz, err := json.Marshal(sizes)
	if err != nil {
		return 0, err
	}
	match, err := imageMatch(imageID)
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(noteID), ident.Bytes(userID), imageID, sz, match, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
