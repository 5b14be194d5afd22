// Package idgen produces record identifiers: monotonic integers for
// ordinary types, wall-clock-derived strings for time-series records, and
// validated calendar dates for daily records.
package idgen

import (
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// TimeSeriesLayout renders local wall-clock fields, zero-padded, with
// millisecond precision.
const TimeSeriesLayout = "2006-01-02-15.04.05.000"

var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Allocator hands out identifiers. Sequential counters live in the index
// database, guarded by its transactions, so allocation survives restarts.
type Allocator struct {
	db     *index.DB
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Allocator using the wall clock.
func New(db *index.DB, logger *slog.Logger) *Allocator {
	return &Allocator{db: db, logger: logger, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Now returns the allocator's current instant.
func (a *Allocator) Now() time.Time { return a.now() }

// NextSequential atomically increments and returns the per-type counter.
// Values start at 1, are strictly increasing, and are never reused after
// deletes.
func (a *Allocator) NextSequential(typ string) (string, error) {
	n, err := a.db.NextSequence(typ)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// TimeSeriesID returns the caller-supplied id unchanged, or derives one
// from the given instant (the current instant when at is zero).
func (a *Allocator) TimeSeriesID(explicit string, at time.Time) string {
	if explicit != "" {
		return explicit
	}
	if at.IsZero() {
		at = a.now()
	}
	return at.Format(TimeSeriesLayout)
}

// DateOf derives the calendar date encoded in a time-series id: the first
// 10 characters when they match YYYY-MM-DD. Ids that do not carry a date
// prefix fall back to today; the fallback is logged so it never happens
// silently.
func (a *Allocator) DateOf(id string) string {
	if d, ok := DateFromID(id); ok {
		return d
	}
	today := a.now().Format(models.DateLayout)
	a.logger.Warn("id has no date prefix, date filters will treat it as today",
		slog.String("id", id), slog.String("date", today))
	return today
}

// DateFromID reports the date prefix of an id, if it has one.
func DateFromID(id string) (string, bool) {
	if m := datePrefixRe.FindString(id); m != "" {
		return m, true
	}
	return "", false
}

// ValidateDateID checks that an id is a real calendar date in YYYY-MM-DD
// form. time.Parse rejects impossible dates such as 2024-02-30.
func ValidateDateID(id string) error {
	if _, err := time.Parse(models.DateLayout, id); err != nil {
		return apperr.Validationf("id %q is not a valid calendar date (want YYYY-MM-DD)", id)
	}
	return nil
}
