package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository/memory"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

type settled struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAck struct {
	mu  sync.Mutex
	got []settled
}

var _ amqp.Acknowledger = (*fakeAck)(nil)

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, settled{tag: tag, ack: true})
	return nil
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, settled{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func (a *fakeAck) all() []settled {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]settled(nil), a.got...)
}

type fakeSizer struct {
	err  error
	seen []model.ImageSizesUpdate
}

func (f *fakeSizer) AddImageSizes(_ context.Context, u model.ImageSizesUpdate) error {
	f.seen = append(f.seen, u)
	return f.err
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

const validBody = `{"noteId":"5f1d7b2e9c1a4b0001a1b2c3","userId":"5f1d7b2e9c1a4b0001a1b2c4","imageId":"img","sizes":[{"name":"thumb","width":100}]}`

func TestHandle_Dispositions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		want settled
	}{
		{"applied", validBody, nil, settled{tag: 1, ack: true}},
		{"note gone", validBody, errs.ErrNotFound, settled{tag: 1, ack: true}},
		{"invalid update", validBody, errs.ErrValidation, settled{tag: 1, ack: true}},
		{"malformed json", "{", nil, settled{tag: 1, ack: true}},
		{"store fault", validBody, errors.New("db down"), settled{tag: 1, requeue: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			sizer := &fakeSizer{err: tt.err}
			c := NewConsumer(sizer, "q", zaptest.NewLogger(t), nil)

			c.Handle(context.Background(), delivery(ack, 1, tt.body))
			require.Equal(t, []settled{tt.want}, ack.all())
		})
	}
}

func TestHandle_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewConsumer(&fakeSizer{err: errors.New("db down")}, "q", zaptest.NewLogger(t), metrics.New(reg))
	ack := &fakeAck{}
	c.Handle(context.Background(), delivery(ack, 1, validBody))
	c.Handle(context.Background(), delivery(ack, 2, "not json"))

	expected := `
# HELP gardenjournal_image_events_total Image pipeline messages by disposition.
# TYPE gardenjournal_image_events_total counter
gardenjournal_image_events_total{disposition="dropped"} 1
gardenjournal_image_events_total{disposition="requeued"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gardenjournal_image_events_total"))
}

func TestHandle_UpdatesNote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	notes := service.NewNoteService(store.Notes, store.Plants)
	user := ident.New().Hex()
	n, err := notes.Create(ctx, model.Note{Date: 20240101, Images: []model.Image{{ID: "img-9", Ext: "png"}}}, user)
	require.NoError(t, err)

	body := `{"noteId":"` + n.ID + `","userId":"` + user + `","imageId":"img-9","sizes":[{"name":"sm","width":300},{"name":"orig","width":4000}]}`
	ack := &fakeAck{}
	NewConsumer(notes, "q", zaptest.NewLogger(t), nil).Handle(ctx, delivery(ack, 7, body))
	require.Equal(t, []settled{{tag: 7, ack: true}}, ack.all())

	got, err := notes.GetByID(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, []model.ImageSize{{Name: model.SizeSM, Width: 300}, {Name: model.SizeOrig, Width: 4000}}, got.Images[0].Sizes)
}

type fakeChannel struct {
	msgs     chan amqp.Delivery
	declared string
	canceled bool
}

func (f *fakeChannel) Qos(int, int, bool) error { return nil }
func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.declared = name
	return amqp.Queue{Name: name}, nil
}
func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.msgs, nil
}
func (f *fakeChannel) Cancel(string, bool) error {
	f.canceled = true
	return nil
}

func TestRun(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{msgs: make(chan amqp.Delivery, 2)}
	ack := &fakeAck{}
	sizer := &fakeSizer{}
	c := NewConsumer(sizer, "image_sizes", zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, ch) }()

	ch.msgs <- delivery(ack, 1, validBody)
	ch.msgs <- delivery(ack, 2, validBody)
	require.Eventually(t, func() bool { return len(ack.all()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, "image_sizes", ch.declared)
	require.True(t, ch.canceled)

	closed := &fakeChannel{msgs: make(chan amqp.Delivery)}
	close(closed.msgs)
	require.Error(t, c.Run(context.Background(), closed))
}
