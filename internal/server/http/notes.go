package httpserver

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gardenjournal/gardenjournal/internal/model"
)

const maxFeedLimit = 500

type noteRequest struct {
	ID       string         `json:"_id" validate:"omitempty,len=24,hexadecimal"`
	Date     jsonDate       `json:"date" validate:"required,yyyymmdd"`
	Note     string         `json:"note" validate:"max=20000"`
	PlantIDs []string       `json:"plantIds" validate:"max=200,dive,len=24,hexadecimal"`
	Metrics  *model.Metrics `json:"metrics"`
	Images   []model.Image  `json:"images" validate:"max=50,dive"`
}

func (r noteRequest) note() model.Note {
	return model.Note{
		ID:       r.ID,
		Date:     int(r.Date),
		Note:     r.Note,
		PlantIDs: r.PlantIDs,
		Metrics:  r.Metrics,
		Images:   r.Images,
	}
}

type notesQuery struct {
	NoteIDs  []string `json:"noteIds" validate:"required_without=PlantIDs,max=500"`
	PlantIDs []string `json:"plantIds" validate:"max=500"`
}

func (h *handler) registerNotes(r fiber.Router) {
	r.Post("/note", requireAuth, h.upsertNote)
	r.Post("/notes", h.getNotes)
	r.Delete("/note/:id", requireAuth, h.deleteNote)
	r.Get("/image/:imageId/note", h.noteByImage)
	r.Put("/image-complete", h.callbackOnly("image"), h.imageComplete)
	r.Get("/feed/latest", h.feed)
}

func (h *handler) upsertNote(c *fiber.Ctx) error {
	var req noteRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	n, err := h.svc.Notes.Upsert(c.UserContext(), req.note(), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (h *handler) getNotes(c *fiber.Ctx) error {
	var req notesQuery
	if err := h.bind(c, &req); err != nil {
		return err
	}
	var (
		ns  []model.Note
		err error
	)
	if len(req.PlantIDs) > 0 {
		ns, err = h.svc.Notes.GetByPlantIDs(c.UserContext(), req.PlantIDs)
	} else {
		ns, err = h.svc.Notes.GetByIDs(c.UserContext(), req.NoteIDs)
	}
	if err != nil {
		return err
	}
	return c.JSON(ns)
}

func (h *handler) deleteNote(c *fiber.Ctx) error {
	n, err := h.svc.Notes.Delete(c.UserContext(), c.Params("id"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}

func (h *handler) noteByImage(c *fiber.Ctx) error {
	n, err := h.svc.Notes.GetByImageID(c.UserContext(), c.Params("imageId"))
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (h *handler) imageComplete(c *fiber.Ctx) error {
	var u model.ImageSizesUpdate
	if err := h.bind(c, &u); err != nil {
		return err
	}
	if err := h.svc.Notes.AddImageSizes(c.UserContext(), u); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) feed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.cfg.FeedLimit)
	if limit <= 0 {
		limit = h.cfg.FeedLimit
	}
	limit = min(limit, maxFeedLimit)
	ns, err := h.svc.Notes.GetLatestWithPlants(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(ns)
}
