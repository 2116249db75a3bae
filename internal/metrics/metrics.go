// Package metrics exposes Prometheus collectors for the journal services.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gardenjournal/gardenjournal/internal/errs"
)

// Geo cache results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
	CacheSeed = "seed"
)

// Cascade actions recorded by plant deletion.
const (
	NotesDeleted   = "notes_deleted"
	NotesRewritten = "notes_rewritten"
	PlantsDeleted  = "plants_deleted"
)

// Image pipeline message dispositions.
const (
	EventApplied  = "applied"
	EventDropped  = "dropped"
	EventRequeued = "requeued"
)

// Metrics groups the service collectors.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	geo      *prometheus.CounterVec
	cascade  *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenjournal",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gardenjournal",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		geo: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenjournal",
			Name:      "geo_cache_total",
			Help:      "Location reference cache lookups.",
		}, []string{"result"}),
		cascade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenjournal",
			Name:      "plant_delete_cascade_total",
			Help:      "Documents touched by plant deletion.",
		}, []string{"action"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenjournal",
			Name:      "image_events_total",
			Help:      "Image pipeline messages by disposition.",
		}, []string{"disposition"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.duration, m.geo, m.cascade, m.events)
	}
	return m
}

// Status classifies an operation error for the status label.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidID):
		return "invalid"
	}
	return "error"
}

// Observe records one operation outcome.
func (m *Metrics) Observe(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, Status(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// GeoCache records a reference cache result.
func (m *Metrics) GeoCache(result string) {
	if m == nil {
		return
	}
	m.geo.WithLabelValues(result).Inc()
}

// Cascade adds n to a cascade action counter.
func (m *Metrics) Cascade(action string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cascade.WithLabelValues(action).Add(float64(n))
}

// ImageEvent records how an image pipeline message was settled.
func (m *Metrics) ImageEvent(disposition string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(disposition).Inc()
}
