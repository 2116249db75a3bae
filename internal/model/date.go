package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gardenjournal/gardenjournal/internal/errs"
)

// ParseDate converts YYYYMMDD, YYYY-MM-DD or an RFC3339 timestamp into the
// integer YYYYMMDD form used by stored documents.
func ParseDate(s string) (int, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"20060102", "2006-01-02", time.RFC3339, time.RFC3339Nano}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return DateFromTime(t), nil
		}
	}
	return 0, fmt.Errorf("%w: bad date %q", errs.ErrValidation, s)
}

// DateFromTime returns t's calendar date as YYYYMMDD.
func DateFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ValidDate reports whether d is a real calendar date in YYYYMMDD form.
func ValidDate(d int) bool {
	_, err := time.Parse("20060102", strconv.Itoa(d))
	return err == nil && d >= 10000101
}

// normalizeDate re-validates an optional integer date.
func normalizeDate(field string, d *int) error {
	if d == nil {
		return nil
	}
	if !ValidDate(*d) {
		return fmt.Errorf("%w: %s %d is not YYYYMMDD", errs.ErrValidation, field, *d)
	}
	return nil
}
