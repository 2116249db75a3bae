package httpserver

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gardenjournal/gardenjournal/internal/model"
)

type locationRequest struct {
	Title    string                   `json:"title" validate:"max=200"`
	Members  map[string]model.Role    `json:"members" validate:"omitempty,max=100,dive,keys,len=24,hexadecimal,endkeys,oneof=owner manager member"`
	Stations map[string]model.Station `json:"stations" validate:"omitempty,max=100"`
}

func (h *handler) registerLocations(r fiber.Router) {
	r.Get("/locations", h.allLocations)
	r.Get("/locations/user/:userId", h.locationsByUser)
	r.Get("/location/:id", h.getLocation)
	r.Post("/location", requireAuth, h.createLocation)
	r.Put("/location/:id", requireAuth, h.updateLocation)
	r.Delete("/location/:id", requireAuth, h.deleteLocation)
}

func (h *handler) allLocations(c *fiber.Ctx) error {
	ls, err := h.svc.Locations.GetAllLocations(c.UserContext(), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(ls)
}

func (h *handler) locationsByUser(c *fiber.Ctx) error {
	ls, err := h.svc.Locations.GetByUserID(c.UserContext(), c.Params("userId"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(ls)
}

func (h *handler) getLocation(c *fiber.Ctx) error {
	l, err := h.svc.Locations.GetByID(c.UserContext(), c.Params("id"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(l)
}

// createLocation makes the caller the creator. Without an explicit members
// map the caller becomes the only owner.
func (h *handler) createLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	me := userIDOf(c)
	members := req.Members
	if len(members) == 0 {
		members = map[string]model.Role{me: model.RoleOwner}
	}
	l, err := h.svc.Locations.Create(c.UserContext(), model.Location{
		Title:     req.Title,
		CreatedBy: me,
		Members:   members,
		Stations:  req.Stations,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

func (h *handler) updateLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	l, err := h.svc.Locations.UpdateByID(c.UserContext(), model.Location{
		ID:       c.Params("id"),
		Title:    req.Title,
		Members:  req.Members,
		Stations: req.Stations,
	}, userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(l)
}

func (h *handler) deleteLocation(c *fiber.Ctx) error {
	n, err := h.svc.Locations.Delete(c.UserContext(), c.Params("id"), userIDOf(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}
