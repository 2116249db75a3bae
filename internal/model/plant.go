package model

import (
	"fmt"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// TerminationReason explains why a plant is no longer in the garden.
type TerminationReason string

// Termination reasons.
const (
	TerminatedDied        TerminationReason = "died"
	TerminatedCulled      TerminationReason = "culled"
	TerminatedTransferred TerminationReason = "transferred"
)

// Valid reports whether r is empty or a known reason.
func (r TerminationReason) Valid() bool {
	switch r {
	case "", TerminatedDied, TerminatedCulled, TerminatedTransferred:
		return true
	}
	return false
}

// Plant is the biz shape of a plant.
type Plant struct {
	ID                    string            `json:"_id,omitempty"`
	UserID                string            `json:"userId"`
	LocationID            string            `json:"locationId"`
	Title                 string            `json:"title"`
	CommonName            string            `json:"commonName,omitempty"`
	BotanicalName         string            `json:"botanicalName,omitempty"`
	Description           string            `json:"description,omitempty"`
	PurchaseDate          *int              `json:"purchasedDate,omitempty"`
	PlantedDate           *int              `json:"plantedDate,omitempty"`
	TerminatedDate        *int              `json:"terminatedDate,omitempty"`
	TerminatedReason      TerminationReason `json:"terminatedReason,omitempty"`
	TerminatedDescription string            `json:"terminatedDescription,omitempty"`
	Price                 *float64          `json:"price,omitempty"`
	Loc                   *GeoPoint         `json:"loc,omitempty"`

	// Notes is derived at read time: ids of notes referencing this plant, date ascending.
	Notes []string `json:"notes,omitempty"`
}

// PlantDoc is the stored shape of a plant.
type PlantDoc struct {
	ID                    ident.ID
	UserID                ident.ID
	LocationID            ident.ID
	Title                 string
	CommonName            string
	BotanicalName         string
	Description           string
	PurchaseDate          *int
	PlantedDate           *int
	TerminatedDate        *int
	TerminatedReason      TerminationReason
	TerminatedDescription string
	Price                 *float64
	Loc                   *GeoPoint
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PlantTitle is the reduced projection joined onto feed notes.
type PlantTitle struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

// NormalizeDates re-validates the integer date fields and the termination reason.
func (p *Plant) NormalizeDates() error {
	if err := normalizeDate("purchasedDate", p.PurchaseDate); err != nil {
		return err
	}
	if err := normalizeDate("plantedDate", p.PlantedDate); err != nil {
		return err
	}
	if err := normalizeDate("terminatedDate", p.TerminatedDate); err != nil {
		return err
	}
	if !p.TerminatedReason.Valid() {
		return fmt.Errorf("%w: terminatedReason %q", errs.ErrValidation, p.TerminatedReason)
	}
	return nil
}

// PlantToDoc converts identifiers to their internal form. Empty ids map to ident.Nil.
func PlantToDoc(p Plant) (PlantDoc, error) {
	id, err := optionalID("_id", p.ID)
	if err != nil {
		return PlantDoc{}, err
	}
	userID, err := optionalID("userId", p.UserID)
	if err != nil {
		return PlantDoc{}, err
	}
	locID, err := optionalID("locationId", p.LocationID)
	if err != nil {
		return PlantDoc{}, err
	}
	return PlantDoc{
		ID:                    id,
		UserID:                userID,
		LocationID:            locID,
		Title:                 p.Title,
		CommonName:            p.CommonName,
		BotanicalName:         p.BotanicalName,
		Description:           p.Description,
		PurchaseDate:          p.PurchaseDate,
		PlantedDate:           p.PlantedDate,
		TerminatedDate:        p.TerminatedDate,
		TerminatedReason:      p.TerminatedReason,
		TerminatedDescription: p.TerminatedDescription,
		Price:                 p.Price,
		Loc:                   clonePoint(p.Loc),
	}, nil
}

// PlantFromDoc converts identifiers to their external form.
func PlantFromDoc(d PlantDoc) Plant {
	return Plant{
		ID:                    externalID(d.ID),
		UserID:                externalID(d.UserID),
		LocationID:            externalID(d.LocationID),
		Title:                 d.Title,
		CommonName:            d.CommonName,
		BotanicalName:         d.BotanicalName,
		Description:           d.Description,
		PurchaseDate:          d.PurchaseDate,
		PlantedDate:           d.PlantedDate,
		TerminatedDate:        d.TerminatedDate,
		TerminatedReason:      d.TerminatedReason,
		TerminatedDescription: d.TerminatedDescription,
		Price:                 d.Price,
		Loc:                   clonePoint(d.Loc),
	}
}

// ClonePlantDoc deep-copies a stored plant.
func ClonePlantDoc(d PlantDoc) PlantDoc {
	c := d
	c.PurchaseDate = cloneInt(d.PurchaseDate)
	c.PlantedDate = cloneInt(d.PlantedDate)
	c.TerminatedDate = cloneInt(d.TerminatedDate)
	if d.Price != nil {
		p := *d.Price
		c.Price = &p
	}
	c.Loc = clonePoint(d.Loc)
	return c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
