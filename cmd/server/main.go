// Command gardenjournal-server serves the journal over HTTP, reports store
// health over gRPC and applies image pipeline events from AMQP.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gardenjournal/gardenjournal/internal/app"
	"github.com/gardenjournal/gardenjournal/internal/config"
	"github.com/gardenjournal/gardenjournal/internal/events"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
	grpcserver "github.com/gardenjournal/gardenjournal/internal/server/grpc"
	httpserver "github.com/gardenjournal/gardenjournal/internal/server/http"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.LogDev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("driver", cfg.DBDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	svc := app.NewServices(stores, cfg, logger, m)

	web := httpserver.New(httpserver.Services{
		Plants:    svc.Plants,
		Notes:     svc.Notes,
		Locations: svc.Locations,
		Users:     svc.Users,
		Sessions:  svc.Sessions,
	}, httpserver.Config{
		CallbackToken: cfg.CallbackToken,
		FeedLimit:     cfg.FeedLimit,
		Gatherer:      reg,
		DB:            stores.DB,
		Lockout:       stores.Lockout,
	}, logger.Named("http"))

	health := grpcserver.NewHealth(stores.DB, logger.Named("health"), 10*time.Second)
	gs := grpcserver.NewServer(logger.Named("grpc"), health)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		return web.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	if cfg.AMQPURL != "" {
		g.Go(func() error { return consume(gctx, cfg, svc, logger, m) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdown(logger, web.ShutdownWithTimeout, gs.GracefulStop, gs.Stop)
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		// listeners return errors once closed during shutdown
		return nil
	}
	return err
}

// consume applies image size events until ctx is done or the broker closes
// the delivery channel.
func consume(ctx context.Context, cfg *config.Config, svc *app.Services, logger *zap.Logger, m *metrics.Metrics) error {
	conn, ch, err := events.Dial(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	c := events.NewConsumer(svc.Notes, cfg.AMQPQueue, logger.Named("events"), m)
	logger.Info("consuming image events", zap.String("queue", cfg.AMQPQueue))
	if err := c.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func shutdown(logger *zap.Logger, httpStop func(time.Duration) error, graceful, hard func()) {
	if err := httpStop(shutdownGrace); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		hard()
	}
}
