package model

import (
	"fmt"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// Station is a named watering/measurement station at a location.
type Station struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Location is the biz shape of a yard.
type Location struct {
	ID        string             `json:"_id,omitempty"`
	Title     string             `json:"title"`
	CreatedBy string             `json:"createdBy"`
	Members   map[string]Role    `json:"members"`
	Stations  map[string]Station `json:"stations,omitempty"`
	Loc       *GeoPoint          `json:"loc,omitempty"`

	// PlantIDs is derived at read time from plants whose locationId matches.
	PlantIDs []string `json:"plantIds,omitempty"`
}

// LocationDoc is the stored shape of a location.
type LocationDoc struct {
	ID        ident.ID
	Title     string
	CreatedBy ident.ID
	Members   map[ident.ID]Role
	Stations  map[string]Station
	Loc       *GeoPoint
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleOf returns the member's role, if any.
func (d LocationDoc) RoleOf(userID ident.ID) (Role, bool) {
	r, ok := d.Members[userID]
	return r, ok
}

// HasOwner reports whether at least one member holds the owner role.
func (d LocationDoc) HasOwner() bool {
	for _, r := range d.Members {
		if r == RoleOwner {
			return true
		}
	}
	return false
}

// LocationToDoc converts identifiers, including member keys, to their internal form.
func LocationToDoc(l Location) (LocationDoc, error) {
	id, err := optionalID("_id", l.ID)
	if err != nil {
		return LocationDoc{}, err
	}
	createdBy, err := optionalID("createdBy", l.CreatedBy)
	if err != nil {
		return LocationDoc{}, err
	}
	var members map[ident.ID]Role
	if l.Members != nil {
		members = make(map[ident.ID]Role, len(l.Members))
		for k, r := range l.Members {
			uid, err := ident.ToInternal(k)
			if err != nil {
				return LocationDoc{}, fmt.Errorf("members: %w", err)
			}
			if !r.Valid() {
				return LocationDoc{}, fmt.Errorf("%w: members.%s role %q", errs.ErrValidation, k, r)
			}
			members[uid] = r
		}
	}
	return LocationDoc{
		ID:        id,
		Title:     l.Title,
		CreatedBy: createdBy,
		Members:   members,
		Stations:  cloneStations(l.Stations),
		Loc:       clonePoint(l.Loc),
	}, nil
}

// LocationFromDoc converts identifiers, including member keys, to their external form.
func LocationFromDoc(d LocationDoc) Location {
	members := make(map[string]Role, len(d.Members))
	for k, r := range d.Members {
		members[ident.ToExternal(k)] = r
	}
	return Location{
		ID:        externalID(d.ID),
		Title:     d.Title,
		CreatedBy: externalID(d.CreatedBy),
		Members:   members,
		Stations:  cloneStations(d.Stations),
		Loc:       clonePoint(d.Loc),
	}
}

// CloneLocationDoc deep-copies a stored location.
func CloneLocationDoc(d LocationDoc) LocationDoc {
	c := d
	if d.Members != nil {
		c.Members = make(map[ident.ID]Role, len(d.Members))
		for k, v := range d.Members {
			c.Members[k] = v
		}
	}
	c.Stations = cloneStations(d.Stations)
	c.Loc = clonePoint(d.Loc)
	return c
}

func cloneStations(in map[string]Station) map[string]Station {
	if in == nil {
		return nil
	}
	out := make(map[string]Station, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
