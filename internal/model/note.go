package model

import (
	"fmt"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// SizeName names a generated image variant.
type SizeName string

// Image size names, smallest first.
const (
	SizeThumb SizeName = "thumb"
	SizeSM    SizeName = "sm"
	SizeMD    SizeName = "md"
	SizeLG    SizeName = "lg"
	SizeXL    SizeName = "xl"
	SizeOrig  SizeName = "orig"
)

// SizeNames lists the variants in order.
var SizeNames = []SizeName{SizeThumb, SizeSM, SizeMD, SizeLG, SizeXL, SizeOrig}

// Valid reports whether n is a known size name.
func (n SizeName) Valid() bool {
	for _, s := range SizeNames {
		if s == n {
			return true
		}
	}
	return false
}

// ImageSize is one generated variant of an uploaded image.
type ImageSize struct {
	Name  SizeName `json:"name"`
	Width int      `json:"width"`
}

// Image is an upload attached to a note. ID is the opaque key assigned at
// upload time; it is not a reference to another collection.
type Image struct {
	ID           string      `json:"id"`
	Ext          string      `json:"ext"`
	OriginalName string      `json:"originalname"`
	Size         int64       `json:"size"`
	Sizes        []ImageSize `json:"sizes"`
}

// Metrics are the fixed measurement/event keys a note may carry.
type Metrics struct {
	Height        *float64 `json:"height,omitempty"`
	Girth         *float64 `json:"girth,omitempty"`
	HarvestCount  *float64 `json:"harvestCount,omitempty"`
	HarvestWeight *float64 `json:"harvestWeight,omitempty"`
	FirstBlossom  bool     `json:"firstBlossom,omitempty"`
	LastBlossom   bool     `json:"lastBlossom,omitempty"`
	FirstLeafShed bool     `json:"firstLeafShed,omitempty"`
	LastLeafShed  bool     `json:"lastLeafShed,omitempty"`
	HarvestStart  bool     `json:"harvestStart,omitempty"`
	HarvestEnd    bool     `json:"harvestEnd,omitempty"`
}

// Note is the biz shape of a journal note.
type Note struct {
	ID       string   `json:"_id,omitempty"`
	UserID   string   `json:"userId"`
	Date     int      `json:"date"`
	Note     string   `json:"note"`
	PlantIDs []string `json:"plantIds"`
	Metrics  *Metrics `json:"metrics,omitempty"`
	Images   []Image  `json:"images,omitempty"`
}

// NoteDoc is the stored shape of a note.
type NoteDoc struct {
	ID        ident.ID
	UserID    ident.ID
	Date      int
	Note      string
	PlantIDs  []ident.ID
	Metrics   *Metrics
	Images    []Image
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteWithPlants is a feed entry: a note joined with the titles of its plants.
type NoteWithPlants struct {
	Note
	Plants []PlantTitle `json:"plants"`
}

// ImageSizesUpdate is the image pipeline's report for one uploaded image.
type ImageSizesUpdate struct {
	NoteID  string      `json:"noteId"`
	UserID  string      `json:"userId"`
	ImageID string      `json:"imageId"`
	Sizes   []ImageSize `json:"sizes"`
}

// Validate checks the ids and size names of an update.
func (u ImageSizesUpdate) Validate() error {
	if err := RequireID("noteId", u.NoteID); err != nil {
		return err
	}
	if err := RequireID("userId", u.UserID); err != nil {
		return err
	}
	if u.ImageID == "" {
		return fmt.Errorf("%w: missing imageId", errs.ErrValidation)
	}
	for _, s := range u.Sizes {
		if !s.Name.Valid() || s.Width <= 0 {
			return fmt.Errorf("%w: bad image size %q/%d", errs.ErrValidation, s.Name, s.Width)
		}
	}
	return nil
}

// NoteToDoc converts identifiers to their internal form. Empty ids map to ident.Nil.
func NoteToDoc(n Note) (NoteDoc, error) {
	id, err := optionalID("_id", n.ID)
	if err != nil {
		return NoteDoc{}, err
	}
	userID, err := optionalID("userId", n.UserID)
	if err != nil {
		return NoteDoc{}, err
	}
	plantIDs, err := idList("plantIds", n.PlantIDs)
	if err != nil {
		return NoteDoc{}, err
	}
	return NoteDoc{
		ID:       id,
		UserID:   userID,
		Date:     n.Date,
		Note:     n.Note,
		PlantIDs: plantIDs,
		Metrics:  cloneMetrics(n.Metrics),
		Images:   CloneImages(n.Images),
	}, nil
}

// NoteFromDoc converts identifiers to their external form.
func NoteFromDoc(d NoteDoc) Note {
	return Note{
		ID:       externalID(d.ID),
		UserID:   externalID(d.UserID),
		Date:     d.Date,
		Note:     d.Note,
		PlantIDs: ident.ToExternalMany(d.PlantIDs),
		Metrics:  cloneMetrics(d.Metrics),
		Images:   CloneImages(d.Images),
	}
}

func cloneMetrics(m *Metrics) *Metrics {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// CloneImages deep-copies an image list.
func CloneImages(in []Image) []Image {
	if in == nil {
		return nil
	}
	out := make([]Image, len(in))
	for i, img := range in {
		out[i] = img
		out[i].Sizes = append([]ImageSize(nil), img.Sizes...)
	}
	return out
}

// CloneNoteDoc deep-copies a stored note.
func CloneNoteDoc(d NoteDoc) NoteDoc {
	c := d
	c.PlantIDs = append([]ident.ID(nil), d.PlantIDs...)
	c.Metrics = cloneMetrics(d.Metrics)
	c.Images = CloneImages(d.Images)
	return c
}
