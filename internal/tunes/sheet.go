// Package tunes turns the venue's published spreadsheet (one free-text date
// and one artist name per row) into Tunes @ Noon occurrences at local noon
// in the venue's timezone.
package tunes

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/httpx"
	"github.com/church-studio/venue-api/internal/core/timeutil"
	"github.com/church-studio/venue-api/internal/occurrence"
)

const (
	// EventTitle labels every spreadsheet occurrence.
	EventTitle = "Tunes @ Noon"
	// VenueName is the fixed location for spreadsheet occurrences.
	VenueName = "The Church Studio"
	// VenueTimezone anchors "noon" for spreadsheet rows. Noon local time,
	// not noon UTC.
	VenueTimezone = "America/Chicago"

	descriptionPrefix = "Artist: "
	noonHour          = 12
)

// SheetSource fetches the published CSV feed with a short process-local
// TTL cache. On fetch failure it serves the last known-good rows rather
// than an empty list.
type SheetSource struct {
	url  string
	ttl  time.Duration
	http *http.Client
	loc  *time.Location
	now  func() time.Time

	mu        sync.Mutex
	cached    []occurrence.Occurrence
	fetchedAt time.Time
}

// NewSheetSource creates the spreadsheet adapter.
func NewSheetSource(cfg config.TunesConfig) (*SheetSource, error) {
	ttl, err := cfg.EffectiveCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid tunes cache ttl: %w", err)
	}
	loc, err := time.LoadLocation(VenueTimezone)
	if err != nil {
		return nil, fmt.Errorf("load venue timezone: %w", err)
	}
	return &SheetSource{
		url:  cfg.SheetCSVURL,
		ttl:  ttl,
		http: httpx.NewClient(httpx.DefaultTimeout),
		loc:  loc,
		now:  time.Now,
	}, nil
}

func (s *SheetSource) Name() string { return "tunes-sheet" }

// Occurrences returns the spreadsheet rows as occurrences, serving the TTL
// cache when it is fresh and the last known-good rows when fetching fails.
func (s *SheetSource) Occurrences(ctx context.Context) []occurrence.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.cached) > 0 && now.Sub(s.fetchedAt) < s.ttl {
		return s.cached
	}

	rows, err := s.fetchRows(ctx)
	if err != nil {
		slog.Warn("tunes sheet fetch failed, serving last known rows", "error", err)
		return s.cached
	}

	out := make([]occurrence.Occurrence, 0, len(rows))
	for _, row := range rows {
		if occ, ok := s.rowToOccurrence(row); ok {
			out = append(out, occ)
		}
	}

	s.cached = out
	s.fetchedAt = now
	return out
}

func (s *SheetSource) fetchRows(ctx context.Context) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	req, err := httpx.NewRequest(ctx, http.MethodGet, s.url, nil, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func (s *SheetSource) rowToOccurrence(row []string) (occurrence.Occurrence, bool) {
	if len(row) < 2 {
		return occurrence.Occurrence{}, false
	}
	dateStr := strings.TrimSpace(row[0])
	artistRaw := strings.TrimSpace(row[1])
	if dateStr == "" || artistRaw == "" {
		return occurrence.Occurrence{}, false
	}

	date, ok := ParseSheetDate(dateStr)
	if !ok {
		return occurrence.Occurrence{}, false
	}

	artist := StripWeekdayPrefix(artistRaw)
	if artist == "" {
		return occurrence.Occurrence{}, false
	}

	startsAt := timeutil.InstantAtLocalTime(date.Year, time.Month(date.Month), date.Day, noonHour, 0, s.loc).
		Format(time.RFC3339)

	return occurrence.Occurrence{
		ID:          "tunes-noon:" + startsAt,
		Title:       EventTitle,
		StartsAt:    &startsAt,
		Location:    VenueName,
		Description: descriptionPrefix + artist,
	}, true
}

// Artist recovers the artist name from a Tunes @ Noon occurrence
// description.
func Artist(o occurrence.Occurrence) string {
	return strings.TrimPrefix(o.Description, descriptionPrefix)
}

// CivilDate is a parsed spreadsheet calendar date.
type CivilDate struct {
	Year  int
	Month int
	Day   int
}

var (
	weekdayPrefixRE = regexp.MustCompile(`(?i)^\s*(?:monday|mon|tuesday|tues|tue|wednesday|weds|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun|sday)\s*[:;,]?\s*`)
	sdayFragmentRE  = regexp.MustCompile(`(?i)sday\s*[:;,]`)
	splitPunctRE    = regexp.MustCompile(`[:;,]`)

	mdyRE       = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
	ymdRE       = regexp.MustCompile(`^(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)
	monthNameRE = regexp.MustCompile(`(?i)^(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2}),?\s+(\d{4})`)
	trailTimeRE = regexp.MustCompile(`(?i)^([^@]+?)\s+\d{1,2}:\d{2}\s*(?:am|pm)?`)
	headerRE    = regexp.MustCompile(`(?i)^date$`)
)

var monthNumbers = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// StripWeekdayPrefix removes a leading weekday label ("Thursday:", "Weds,")
// from a spreadsheet cell. Cells that still carry an embedded "sday:"
// fragment after the first pass are cut at the first punctuation mark.
func StripWeekdayPrefix(s string) string {
	out := weekdayPrefixRE.ReplaceAllString(strings.TrimSpace(s), "")

	if sdayFragmentRE.MatchString(out) {
		parts := splitPunctRE.Split(out, -1)
		if len(parts) > 1 {
			out = strings.Join(parts[1:], ":")
		}
	}
	return strings.TrimSpace(out)
}

// ParseSheetDate parses the free-text date formats the spreadsheet has
// carried over the years: weekday-prefixed strings, MM/DD/YYYY with two- or
// four-digit years, YYYY/MM/DD, long and short month names, and trailing
// time-of-day text. The header row and unparseable cells report !ok.
func ParseSheetDate(raw string) (CivilDate, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", " "))
	if headerRE.MatchString(raw) {
		return CivilDate{}, false
	}

	s := StripWeekdayPrefix(raw)

	if m := mdyRE.FindStringSubmatch(s); m != nil {
		year := mustAtoi(m[3])
		if year < 100 {
			year += 2000
		}
		return CivilDate{Year: year, Month: mustAtoi(m[1]), Day: mustAtoi(m[2])}, true
	}

	if m := ymdRE.FindStringSubmatch(s); m != nil {
		return CivilDate{Year: mustAtoi(m[1]), Month: mustAtoi(m[2]), Day: mustAtoi(m[3])}, true
	}

	if m := monthNameRE.FindStringSubmatch(s); m != nil {
		month := monthNumbers[strings.TrimSuffix(strings.ToLower(m[1]), ".")]
		return CivilDate{Year: mustAtoi(m[3]), Month: month, Day: mustAtoi(m[2])}, true
	}

	// Strip a trailing time of day ("Jan 5 2024 7:30 PM") and retry.
	if m := trailTimeRE.FindStringSubmatch(s); m != nil {
		return ParseSheetDate(m[1])
	}

	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return CivilDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
		}
	}

	slog.Warn("tunes sheet unrecognized date format", "value", s)
	return CivilDate{}, false
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
