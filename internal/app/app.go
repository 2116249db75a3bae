// Package app assembles repositories and services from a resolved config.
// Both the server and the admin command build their object graph here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/config"
	"github.com/gardenjournal/gardenjournal/internal/geocache"
	"github.com/gardenjournal/gardenjournal/internal/limiter"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
	"github.com/gardenjournal/gardenjournal/internal/migrate"
	"github.com/gardenjournal/gardenjournal/internal/repository"
	"github.com/gardenjournal/gardenjournal/internal/repository/memory"
	"github.com/gardenjournal/gardenjournal/internal/repository/postgres"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores holds one repository per collection plus the handle used for health checks.
type Stores struct {
	Users     repository.UserRepository
	Locations repository.LocationRepository
	Plants    repository.PlantRepository
	Notes     repository.NoteRepository
	DB        Pinger

	// Lockout counts wrong callback tokens per client.
	Lockout limiter.Limiter

	close func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

// Open connects the configured driver. For postgres, pending migrations are
// applied first when cfg.Migrate is set.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		m := memory.New()
		return &Stores{
			Users:     m.Users,
			Locations: m.Locations,
			Plants:    m.Plants,
			Notes:     m.Notes,
			DB:        alwaysUp{},
			Lockout:   limiter.NewMemory(cfg.LockoutWindow, cfg.LockoutMaxFails, cfg.LockoutBlockFor),
		}, nil
	case config.DriverPostgres:
		if cfg.Migrate {
			start := time.Now()
			if err := migrate.Up(ctx, cfg.DSN); err != nil {
				return nil, fmt.Errorf("migrate up: %w", err)
			}
			log.Info("migrations applied", zap.Duration("dur", time.Since(start)))
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		return &Stores{
			Users:     postgres.NewUserRepo(db),
			Locations: postgres.NewLocationRepo(db),
			Plants:    postgres.NewPlantRepo(db),
			Notes:     postgres.NewNoteRepo(db),
			DB:        db,
			Lockout:   limiter.NewPG(db.Pool, cfg.LockoutWindow, cfg.LockoutMaxFails, cfg.LockoutBlockFor),
			close:     db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}

// Services are the lifecycle managers built over one set of stores.
type Services struct {
	Plants    *service.PlantServiceImpl
	Notes     *service.NoteServiceImpl
	Locations *service.LocationServiceImpl
	Users     *service.UserServiceImpl
	Sessions  *service.SessionServiceImpl
}

// NewServices wires the services. m may be nil.
func NewServices(s *Stores, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *Services {
	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	auth := service.NewRoleChecker(s.Locations, log)
	users := service.NewUserService(s.Users, s.Locations, opts...)
	return &Services{
		Plants:    service.NewPlantService(s.Plants, s.Notes, s.Locations, auth, geocache.NewMemory(), opts...),
		Notes:     service.NewNoteService(s.Notes, s.Plants, opts...),
		Locations: service.NewLocationService(s.Locations, s.Plants, auth, opts...),
		Users:     users,
		Sessions:  service.NewSessionService(users, []byte(cfg.JWTKey), cfg.AccessTTL),
	}
}
