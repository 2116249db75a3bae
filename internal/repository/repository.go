// Package repository defines the per-collection accessors implemented by concrete backends.
//
// Accessors work on Doc-shaped records only and perform no authorization of
// their own beyond the ownership scope encoded in their arguments. A missing
// single document is reported as errs.ErrNotFound; list reads return an empty
// slice when nothing matches.
package repository

import (
	"context"

	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// UserRepository provides access to the user collection.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.UserDoc) error
	// GetByID loads a user by id.
	GetByID(ctx context.Context, id ident.ID) (*model.UserDoc, error)
	// GetByIDs loads users by id, in no particular order.
	GetByIDs(ctx context.Context, ids []ident.ID) ([]model.UserDoc, error)
	// FindBySocialID loads the user linked to a provider account.
	FindBySocialID(ctx context.Context, p model.Provider, socialID string) (*model.UserDoc, error)
	// FindByEmail loads a user by email.
	FindByEmail(ctx context.Context, email string) (*model.UserDoc, error)
	// Update replaces name, email and social blocks.
	Update(ctx context.Context, u *model.UserDoc) error
	// List returns every user ordered by name.
	List(ctx context.Context) ([]model.UserDoc, error)
}

// LocationRepository provides access to the location collection.
type LocationRepository interface {
	// Create inserts a new location.
	Create(ctx context.Context, l *model.LocationDoc) error
	// GetByID loads a location by id.
	GetByID(ctx context.Context, id ident.ID) (*model.LocationDoc, error)
	// GetByIDs loads locations by id ordered by title.
	GetByIDs(ctx context.Context, ids []ident.ID) ([]model.LocationDoc, error)
	// GetByMember loads every location listing userID in its members map.
	GetByMember(ctx context.Context, userID ident.ID) ([]model.LocationDoc, error)
	// List returns every location ordered by title.
	List(ctx context.Context) ([]model.LocationDoc, error)
	// Update replaces title, members and stations when ownerID is an owner member.
	// The reference coordinate is left to SetLocIfAbsent.
	Update(ctx context.Context, l *model.LocationDoc, ownerID ident.ID) (int64, error)
	// Delete removes a location when ownerID is an owner member.
	Delete(ctx context.Context, id, ownerID ident.ID) (int64, error)
	// SetLocIfAbsent stores p as the reference coordinate unless one exists and
	// returns whichever coordinate the location holds afterwards.
	SetLocIfAbsent(ctx context.Context, id ident.ID, p model.GeoPoint) (model.GeoPoint, error)
	// ListWithoutOwner returns locations whose members map has no owner.
	ListWithoutOwner(ctx context.Context) ([]model.LocationDoc, error)
}

// PlantRepository provides access to the plant collection.
type PlantRepository interface {
	// Create inserts a new plant.
	Create(ctx context.Context, p *model.PlantDoc) error
	// GetByID loads a plant by id.
	GetByID(ctx context.Context, id ident.ID) (*model.PlantDoc, error)
	// GetByIDs loads plants by id ordered by title.
	GetByIDs(ctx context.Context, ids []ident.ID) ([]model.PlantDoc, error)
	// GetByLocationID loads a location's plants ordered by title.
	GetByLocationID(ctx context.Context, locationID ident.ID) ([]model.PlantDoc, error)
	// IDsByLocationIDs returns plant ids grouped by location id.
	IDsByLocationIDs(ctx context.Context, locationIDs []ident.ID) (map[ident.ID][]ident.ID, error)
	// Update replaces the mutable fields of a plant scoped by id and user id.
	Update(ctx context.Context, p *model.PlantDoc) (int64, error)
	// Delete removes a plant scoped by id and user id.
	Delete(ctx context.Context, id, userID ident.ID) (int64, error)
}

// NoteRepository provides access to the note collection.
type NoteRepository interface {
	// Create inserts a new note.
	Create(ctx context.Context, n *model.NoteDoc) error
	// GetByID loads a note by id.
	GetByID(ctx context.Context, id ident.ID) (*model.NoteDoc, error)
	// GetByIDs loads notes by id, date ascending.
	GetByIDs(ctx context.Context, ids []ident.ID) ([]model.NoteDoc, error)
	// GetByPlantIDs loads notes referencing any of plantIDs, date ascending.
	GetByPlantIDs(ctx context.Context, plantIDs []ident.ID) ([]model.NoteDoc, error)
	// GetByPlantAndUser loads a user's notes referencing plantID, date ascending.
	GetByPlantAndUser(ctx context.Context, plantID, userID ident.ID) ([]model.NoteDoc, error)
	// GetByImageID loads the note carrying an image.
	GetByImageID(ctx context.Context, imageID string) (*model.NoteDoc, error)
	// Latest returns the most recent notes system-wide, date descending.
	Latest(ctx context.Context, limit int) ([]model.NoteDoc, error)
	// Update replaces the mutable fields of a note scoped by id and user id.
	Update(ctx context.Context, n *model.NoteDoc) (int64, error)
	// SetPlantIDs rewrites a note's plant references scoped by id and user id.
	SetPlantIDs(ctx context.Context, id, userID ident.ID, plantIDs []ident.ID) (int64, error)
	// Delete removes a note scoped by id and user id.
	Delete(ctx context.Context, id, userID ident.ID) (int64, error)
	// DeleteByIDs removes a user's notes by id.
	DeleteByIDs(ctx context.Context, ids []ident.ID, userID ident.ID) (int64, error)
	// SetImageSizes overwrites the sizes of one embedded image scoped by note, user and image id.
	SetImageSizes(ctx context.Context, noteID, userID ident.ID, imageID string, sizes []model.ImageSize) (int64, error)
}
