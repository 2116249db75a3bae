package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gardenjournal/gardenjournal/internal/config"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

func TestOpenMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := zaptest.NewLogger(t)
	cfg := &config.Config{
		DBDriver:        config.DriverMemory,
		JWTKey:          "k",
		AccessTTL:       time.Minute,
		LockoutMaxFails: 3,
		LockoutWindow:   time.Minute,
		LockoutBlockFor: time.Minute,
	}

	st, err := Open(ctx, cfg, log)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.DB.Ping(ctx))
	ok, _, err := st.Lockout.Allow(ctx, "callback", []byte("ip"))
	require.NoError(t, err)
	require.True(t, ok)

	svc := NewServices(st, cfg, log, nil)
	tok, u, err := svc.Sessions.Login(ctx, model.UserDetails{Name: "Ann", Google: &model.SocialLogin{ID: "g1"}})
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)

	sub, err := svc.Sessions.Authenticate(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, sub)

	ls, err := svc.Locations.GetByUserID(ctx, u.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, ls, 1)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), &config.Config{DBDriver: "mongo"}, zaptest.NewLogger(t))
	require.ErrorContains(t, err, `unknown db driver "mongo"`)
}
