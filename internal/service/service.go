// Package service contains the journal lifecycle managers: plants, notes,
// locations and users, plus the role check that gates their mutations.
//
// Services speak the biz shape (string ids) and convert to the Doc shape at
// the repository boundary. Store faults are logged with the operation name
// and the ids involved before they are returned; not-found, forbidden and
// validation outcomes are not faults and are returned silently.
package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
)

// Option configures the ambient dependencies shared by every service.
type Option func(*base)

// WithLogger sets the logger used for fault reporting.
func WithLogger(log *zap.Logger) Option {
	return func(b *base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics sets the collectors operations report to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.m = m }
}

type base struct {
	log *zap.Logger
	m   *metrics.Metrics
}

func newBase(opts []Option) base {
	b := base{log: zap.NewNop()}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// isFault reports whether err is a store-level fault rather than an expected outcome.
func isFault(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range []error{errs.ErrNotFound, errs.ErrForbidden, errs.ErrUnauthorized, errs.ErrValidation, errs.ErrInvalidID} {
		if errors.Is(err, e) {
			return false
		}
	}
	return true
}

// track records the outcome of op. It is deferred at the top of every public
// operation with a pointer to the named error result.
func (b base) track(op string, start time.Time, err *error, fields ...zap.Field) {
	b.m.Observe(op, *err, time.Since(start))
	if isFault(*err) {
		b.log.Error(op+" failed", append(fields, zap.String("op", op), zap.Error(*err))...)
	}
}

func validation(msg string) error {
	return fmt.Errorf("%w: %s", errs.ErrValidation, msg)
}
