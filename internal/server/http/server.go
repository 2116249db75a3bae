// Package httpserver exposes the journal services over HTTP with fiber.
//
// Reads are public. Mutations require a bearer session token whose subject
// is the logged-in user id. The image pipeline callback and the session
// endpoint are guarded by a shared token instead.
package httpserver

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/limiter"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

// Services are the lifecycle managers the routes call into.
type Services struct {
	Plants    service.PlantService
	Notes     service.NoteService
	Locations service.LocationService
	Users     service.UserService
	Sessions  service.SessionService
}

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the transport settings.
type Config struct {
	// CallbackToken guards the image pipeline callback and session issuing.
	CallbackToken string
	// FeedLimit is used when a feed request names no limit.
	FeedLimit int
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// DB backs /health; nil reports healthy without a ping.
	DB Pinger
	// Lockout throttles wrong callback tokens; nil disables it.
	Lockout limiter.Limiter
}

type handler struct {
	svc      Services
	cfg      Config
	log      *zap.Logger
	validate *validator.Validate
}

// New builds the fiber app with every route registered.
func New(svc Services, cfg Config, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = service.DefaultFeedLimit
	}
	h := &handler{svc: svc, cfg: cfg, log: log, validate: newValidator()}

	app := fiber.New(fiber.Config{
		AppName:               "gardenjournal",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		ErrorHandler:          errorHandler(log),
	})
	app.Use(requestID(), accessLog(log))

	app.Get("/health", h.health)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", optionalAuth(svc.Sessions))
	h.registerPlants(api)
	h.registerNotes(api)
	h.registerLocations(api)
	h.registerUsers(api)
	return app
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("yyyymmdd", func(fl validator.FieldLevel) bool {
		return model.ValidDate(int(fl.Field().Int()))
	})
	return v
}

func (h *handler) health(c *fiber.Ctx) error {
	if h.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.cfg.DB.Ping(ctx); err != nil {
			h.log.Warn("health ping failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
