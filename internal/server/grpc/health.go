// Package grpcserver serves the grpc.health.v1 service for the journal
// process. Serving status follows database reachability.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the journal store.
const ServiceName = "gardenjournal.Store"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health tracks store reachability in a grpc health server.
type Health struct {
	hs       *health.Server
	db       Pinger
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHealth creates a Health that starts NOT_SERVING until the first ping.
func NewHealth(db Pinger, log *zap.Logger, interval time.Duration) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := &Health{hs: health.NewServer(), db: db, log: log, interval: interval, timeout: interval / 2}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Server exposes the underlying health server for registration and checks.
func (h *Health) Server() *health.Server { return h.hs }

func (h *Health) set(s healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", s)
	h.hs.SetServingStatus(ServiceName, s)
}

// Check pings the store once and updates the serving status.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return healthpb.HealthCheckResponse_SERVING
}

// Run pings on every interval until ctx is done, then marks the service
// as shutting down so load balancers drain it.
func (h *Health) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// NewServer builds a gRPC server with the logging and recovery interceptors
// and the health service registered.
func NewServer(log *zap.Logger, h *Health, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.Server())
	return s
}
