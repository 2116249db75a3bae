package httpserver

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gardenjournal/gardenjournal/internal/model"
)

type plantRequest struct {
	LocationID            string                  `json:"locationId" validate:"required,len=24,hexadecimal"`
	Title                 string                  `json:"title" validate:"required,max=200"`
	CommonName            string                  `json:"commonName" validate:"max=200"`
	BotanicalName         string                  `json:"botanicalName" validate:"max=200"`
	Description           string                  `json:"description" validate:"max=10000"`
	PurchaseDate          *jsonDate               `json:"purchasedDate" validate:"omitempty,yyyymmdd"`
	PlantedDate           *jsonDate               `json:"plantedDate" validate:"omitempty,yyyymmdd"`
	TerminatedDate        *jsonDate               `json:"terminatedDate" validate:"omitempty,yyyymmdd"`
	TerminatedReason      model.TerminationReason `json:"terminatedReason" validate:"omitempty,oneof=died culled transferred"`
	TerminatedDescription string                  `json:"terminatedDescription" validate:"max=10000"`
	Price                 *float64                `json:"price" validate:"omitempty,gte=0"`
	Loc                   *model.GeoPoint         `json:"loc"`
}

func (r plantRequest) plant(id, userID string) model.Plant {
	return model.Plant{
		ID:                    id,
		UserID:                userID,
		LocationID:            r.LocationID,
		Title:                 r.Title,
		CommonName:            r.CommonName,
		BotanicalName:         r.BotanicalName,
		Description:           r.Description,
		PurchaseDate:          (*int)(r.PurchaseDate),
		PlantedDate:           (*int)(r.PlantedDate),
		TerminatedDate:        (*int)(r.TerminatedDate),
		TerminatedReason:      r.TerminatedReason,
		TerminatedDescription: r.TerminatedDescription,
		Price:                 r.Price,
		Loc:                   r.Loc,
	}
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,max=500"`
}

func (h *handler) registerPlants(r fiber.Router) {
	r.Get("/plant/:id", h.getPlant)
	r.Post("/plants", h.getPlants)
	r.Get("/plants/:locationId", h.plantsByLocation)
	r.Post("/plant", requireAuth, h.createPlant)
	r.Put("/plant/:id", requireAuth, h.updatePlant)
	r.Delete("/plant/:id", requireAuth, h.deletePlant)
}

func (h *handler) getPlant(c *fiber.Ctx) error {
	p, err := h.svc.Plants.GetByID(c.UserContext(), c.Params("id"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *handler) getPlants(c *fiber.Ctx) error {
	var req idsRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ps, err := h.svc.Plants.GetByIDs(c.UserContext(), req.IDs, userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(ps)
}

func (h *handler) plantsByLocation(c *fiber.Ctx) error {
	ps, err := h.svc.Plants.GetByLocationID(c.UserContext(), c.Params("locationId"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(ps)
}

func (h *handler) createPlant(c *fiber.Ctx) error {
	var req plantRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	me := userIDOf(c)
	p, err := h.svc.Plants.Create(c.UserContext(), req.plant("", me), me)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *handler) updatePlant(c *fiber.Ctx) error {
	var req plantRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	me := userIDOf(c)
	p, err := h.svc.Plants.Update(c.UserContext(), req.plant(c.Params("id"), me), me)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *handler) deletePlant(c *fiber.Ctx) error {
	n, err := h.svc.Plants.Delete(c.UserContext(), c.Params("id"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}
