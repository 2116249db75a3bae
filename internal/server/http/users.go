package httpserver

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

// sessionRequest is what the login front door reports after it has
// verified a provider login.
type sessionRequest struct {
	Name     string             `json:"name" validate:"max=200"`
	Email    string             `json:"email" validate:"omitempty,email"`
	Facebook *model.SocialLogin `json:"facebook" validate:"required_without=Google"`
	Google   *model.SocialLogin `json:"google"`
}

func (h *handler) registerUsers(r fiber.Router) {
	r.Get("/user/:id", h.getUser)
	r.Get("/users", h.queryUsers)
	r.Post("/session", h.callbackOnly("session"), h.createSession)
}

func (h *handler) getUser(c *fiber.Ctx) error {
	u, err := h.svc.Users.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// queryUsers filters by ?email= or a comma separated ?ids= list.
func (h *handler) queryUsers(c *fiber.Ctx) error {
	q := service.UserQuery{Email: c.Query("email")}
	if ids := c.Query("ids"); ids != "" {
		q.IDs = strings.Split(ids, ",")
	}
	us, err := h.svc.Users.GetByQuery(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(us)
}

func (h *handler) createSession(c *fiber.Ctx) error {
	var req sessionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	tok, u, err := h.svc.Sessions.Login(c.UserContext(), model.UserDetails{
		Name:     req.Name,
		Email:    req.Email,
		Facebook: req.Facebook,
		Google:   req.Google,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": tok, "user": u})
}
