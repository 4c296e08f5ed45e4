// Package events is the query layer: it answers "what's on today" and
// "what's on day D" in a caller-chosen timezone, on top of the collector's
// merged (or cached) view.
package events

import (
	"context"
	"time"

	"github.com/church-studio/venue-api/internal/core/timeutil"
	"github.com/church-studio/venue-api/internal/occurrence"
)

// Note values tag the response so clients can render distinct empty states.
const (
	NoteEventsToday      = "events-today"
	NoteEventsDay        = "events-day"
	NoteNoEventsToday    = "no-events-today"
	NoteFallbackUpcoming = "no-events-today-fallback-upcoming"
)

// DefaultTimezone applies when the caller does not pass tz.
const DefaultTimezone = "America/Chicago"

// upcomingLimit caps the upcoming-events fallback for the today query.
const upcomingLimit = 5

// Collector is the occurrence supplier, live with cache fallback.
type Collector interface {
	CollectOrCached(ctx context.Context) []occurrence.Occurrence
}

// Service answers day queries over the collector's output.
type Service struct {
	collector Collector
	now       func() time.Time
}

// NewService creates the query service.
func NewService(c Collector) *Service {
	return &Service{collector: c, now: time.Now}
}

// Result is a day query's outcome.
type Result struct {
	Events []occurrence.Occurrence
	Note   string
}

// Today returns the occurrences happening today as observed in loc. When
// none match it falls back to the next five upcoming occurrences,
// regardless of day, tagged so the caller can render different empty-state
// messaging.
func (s *Service) Today(ctx context.Context, loc *time.Location) Result {
	all := s.collector.CollectOrCached(ctx)
	now := s.now()

	sameDay := filterSameDay(all, now, loc)
	if len(sameDay) > 0 {
		return Result{Events: sameDay, Note: NoteEventsToday}
	}

	upcoming := make([]occurrence.Occurrence, 0, upcomingLimit)
	for _, occ := range all {
		start, ok := occ.StartTime()
		if !ok || start.Before(now) {
			continue
		}
		upcoming = append(upcoming, occ)
		if len(upcoming) == upcomingLimit {
			break
		}
	}

	note := NoteNoEventsToday
	if len(upcoming) > 0 {
		note = NoteFallbackUpcoming
	}
	return Result{Events: upcoming, Note: note}
}

// Day returns the occurrences on the given civil date as observed in loc.
// No upcoming fallback: an empty day is a valid answer.
func (s *Service) Day(ctx context.Context, year int, month time.Month, day int, loc *time.Location) Result {
	all := s.collector.CollectOrCached(ctx)

	// Anchor the target at noon UTC of the named date so the civil-date
	// comparison is stable in every timezone within +-12h of UTC.
	target := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)

	matched := filterSameDay(all, target, loc)
	note := NoteEventsDay
	if len(matched) == 0 {
		note = NoteNoEventsToday
	}
	return Result{Events: matched, Note: note}
}

func filterSameDay(all []occurrence.Occurrence, target time.Time, loc *time.Location) []occurrence.Occurrence {
	var out []occurrence.Occurrence
	for _, occ := range all {
		start, ok := occ.StartTime()
		if !ok {
			continue
		}
		if timeutil.SameDayInTZ(start, target, loc) {
			out = append(out, occ)
		}
	}
	occurrence.SortByStart(out)
	return out
}
