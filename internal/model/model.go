// Package model defines the records exchanged between layers.
//
// Every entity has two shapes: the biz shape (identifiers as external strings,
// derived attributes such as Plant.Notes populated) used by services and the
// HTTP surface, and the Doc shape (identifiers as ident.ID, no derived
// attributes) used by the collection accessors. The XToDoc/XFromDoc functions
// are the only place that knows which fields of a collection are identifiers.
package model

import (
	"fmt"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// Role is a user's role at a Location.
type Role string

// Roles in descending order of privilege.
const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleMember:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point. Coordinates are (lng, lat).
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a GeoJSON point.
func NewPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// Rebase returns p relative to ref.
func (p GeoPoint) Rebase(ref GeoPoint) GeoPoint {
	return NewPoint(p.Coordinates[0]-ref.Coordinates[0], p.Coordinates[1]-ref.Coordinates[1])
}

func clonePoint(p *GeoPoint) *GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// optionalID parses s, mapping "" to ident.Nil.
func optionalID(field, s string) (ident.ID, error) {
	if s == "" {
		return ident.Nil, nil
	}
	id, err := ident.ToInternal(s)
	if err != nil {
		return ident.Nil, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

// externalID renders id, mapping ident.Nil to "".
func externalID(id ident.ID) string {
	if id.IsZero() {
		return ""
	}
	return ident.ToExternal(id)
}

func idList(field string, ss []string) ([]ident.ID, error) {
	ids, err := ident.ToInternalMany(ss)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return ids, nil
}

// RequireID reports a validation error when an identifier field is empty.
func RequireID(field, s string) error {
	if s == "" {
		return fmt.Errorf("%w: missing %s", errs.ErrValidation, field)
	}
	return nil
}
