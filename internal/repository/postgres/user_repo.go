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

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, name, email, facebook, google, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.UserDoc, error) {
	var (
		u          model.UserDoc
		id, fb, gg []byte
	)
	if err := s.Scan(&id, &u.Name, &u.Email, &fb, &gg, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if u.ID, err = ident.FromBytes(id); err != nil {
		return nil, err
	}
	if u.Facebook, err = jsonScan[model.SocialLogin](fb); err != nil {
		return nil, fmt.Errorf("facebook: %w", err)
	}
	if u.Google, err = jsonScan[model.SocialLogin](gg); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) one(ctx context.Context, q string, args ...any) (*model.UserDoc, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return u, err
}

func (r *UserRepo) many(ctx context.Context, q string, args ...any) ([]model.UserDoc, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.UserDoc, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.UserDoc) error {
	const q = `
INSERT INTO users (id, name, email, facebook, google, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	fb, err := jsonArg(u.Facebook)
	if err != nil {
		return err
	}
	gg, err := jsonArg(u.Google)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err = r.db.Pool.Exec(ctx, q, ident.Bytes(u.ID), u.Name, u.Email, fb, gg, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id ident.ID) (*model.UserDoc, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return r.one(ctx, q, ident.Bytes(id))
}

// GetByIDs selects users by ID.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []ident.ID) ([]model.UserDoc, error) {
	if len(ids) == 0 {
		return []model.UserDoc{}, nil
	}
	const q = `SELECT ` + userCols + ` FROM users WHERE id = ANY($1)`
	return r.many(ctx, q, ident.BytesMany(ids))
}

// FindBySocialID selects the user whose provider block carries socialID.
func (r *UserRepo) FindBySocialID(ctx context.Context, p model.Provider, socialID string) (*model.UserDoc, error) {
	var q string
	switch p {
	case model.ProviderFacebook:
		q = `SELECT ` + userCols + ` FROM users WHERE facebook->>'id' = $1`
	case model.ProviderGoogle:
		q = `SELECT ` + userCols + ` FROM users WHERE google->>'id' = $1`
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, p)
	}
	return r.one(ctx, q, socialID)
}

// FindByEmail selects a user by email, case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.UserDoc, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`
	return r.one(ctx, q, email)
}

// Update replaces name, email and social blocks.
func (r *UserRepo) Update(ctx context.Context, u *model.UserDoc) error {
	const q = `
UPDATE users
SET name = $2, email = $3, facebook = $4, google = $5, updated_at = $6
WHERE id = $1`
	fb, err := jsonArg(u.Facebook)
	if err != nil {
		return err
	}
	gg, err := jsonArg(u.Google)
	if err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Pool.Exec(ctx, q, ident.Bytes(u.ID), u.Name, u.Email, fb, gg, u.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List selects every user.
func (r *UserRepo) List(ctx context.Context) ([]model.UserDoc, error) {
	const q = `SELECT ` + userCols + ` FROM users ORDER BY name, id`
	return r.many(ctx, q)
}
