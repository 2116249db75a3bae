package grpcserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func servingStatus(h *Health) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := h.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealth_FollowsPing(t *testing.T) {
	t.Parallel()

	db := &fakePinger{}
	h := NewHealth(db, zaptest.NewLogger(t), time.Minute)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(h))

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Check(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(h))

	db.fail(errors.New("connection refused"))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Check(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(h))
}

func TestHealth_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := NewHealth(&fakePinger{}, zaptest.NewLogger(t), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return servingStatus(h) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(h))
}

func TestNewServer_RegistersHealth(t *testing.T) {
	t.Parallel()

	s := NewServer(zaptest.NewLogger(t), NewHealth(&fakePinger{}, nil, time.Minute))
	defer s.Stop()
	_, ok := s.GetServiceInfo()["grpc.health.v1.Health"]
	require.True(t, ok)
}
