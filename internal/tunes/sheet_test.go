package tunes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStripWeekdayPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Thu: The Combo", "The Combo"},
		{"Thursday: The Combo", "The Combo"},
		{"Weds, Paul Benjaman", "Paul Benjaman"},
		{"monday Jane Doe", "Jane Doe"},
		{"The Combo", "The Combo"},
		{"  Saturday;  Dustin Pittsley  ", "Dustin Pittsley"},
		{"sday: The Combo", "The Combo"},
		{"Thur sday: The Combo", "The Combo"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, StripWeekdayPrefix(tt.in), "input %q", tt.in)
	}
}

func TestParseSheetDate(t *testing.T) {
	tests := []struct {
		in   string
		want CivilDate
		ok   bool
	}{
		{"1/25/2024", CivilDate{2024, 1, 25}, true},
		{"1-25-24", CivilDate{2024, 1, 25}, true},
		{"01.25.2024", CivilDate{2024, 1, 25}, true},
		{"2024/01/25", CivilDate{2024, 1, 25}, true},
		{"2024-01-25", CivilDate{2024, 1, 25}, true},
		{"January 25, 2024", CivilDate{2024, 1, 25}, true},
		{"Jan 25 2024", CivilDate{2024, 1, 25}, true},
		{"Sept. 5 2024", CivilDate{2024, 9, 5}, true},
		{"Thursday: 1/25/2024", CivilDate{2024, 1, 25}, true},
		{"Thu, Jan 25, 2024", CivilDate{2024, 1, 25}, true},
		{"1/25/2024 7:30 PM", CivilDate{2024, 1, 25}, true},
		{"1/25/2024\u00a07:30 PM", CivilDate{2024, 1, 25}, true},
		{"Date", CivilDate{}, false},
		{"TBD", CivilDate{}, false},
		{"", CivilDate{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseSheetDate(tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			require.Equal(t, tt.want, got, "input %q", tt.in)
		}
	}
}

func newTestSource(t *testing.T, url string) *SheetSource {
	t.Helper()
	loc, err := time.LoadLocation(VenueTimezone)
	require.NoError(t, err)
	return &SheetSource{
		url:  url,
		ttl:  15 * time.Minute,
		http: http.DefaultClient,
		loc:  loc,
		now:  time.Now,
	}
}

func TestSheetSourceOccurrences(t *testing.T) {
	csvBody := "Date,Artist\n" +
		"1/25/2024,Thursday: The Combo\n" +
		"1/26/2024,\n" +
		"not a date,Somebody\n" +
		"7/15/2024,Paul Benjaman\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	s := newTestSource(t, srv.URL)
	occs := s.Occurrences(context.Background())
	require.Len(t, occs, 2)

	first := occs[0]
	require.Equal(t, EventTitle, first.Title)
	require.Equal(t, VenueName, first.Location)
	require.Equal(t, "The Combo", Artist(first))
	require.NotNil(t, first.StartsAt)
	// Noon Chicago in January is 18:00 UTC.
	require.Equal(t, "2024-01-25T18:00:00Z", *first.StartsAt)
	require.Equal(t, "tunes-noon:2024-01-25T18:00:00Z", first.ID)

	// Noon Chicago in July is 17:00 UTC.
	require.Equal(t, "2024-07-15T17:00:00Z", *occs[1].StartsAt)
}

func TestSheetSourceTTLCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("1/25/2024,The Combo\n"))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	s := newTestSource(t, srv.URL)
	s.now = func() time.Time { return now }

	require.Len(t, s.Occurrences(context.Background()), 1)
	require.Len(t, s.Occurrences(context.Background()), 1)
	require.Equal(t, int32(1), hits.Load())

	// Past the TTL the feed is refetched.
	now = now.Add(16 * time.Minute)
	require.Len(t, s.Occurrences(context.Background()), 1)
	require.Equal(t, int32(2), hits.Load())
}

func TestSheetSourceServesLastKnownGoodOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("1/25/2024,The Combo\n"))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	s := newTestSource(t, srv.URL)
	s.now = func() time.Time { return now }

	require.Len(t, s.Occurrences(context.Background()), 1)

	fail.Store(true)
	now = now.Add(16 * time.Minute)
	occs := s.Occurrences(context.Background())
	require.Len(t, occs, 1)
	require.Equal(t, "The Combo", Artist(occs[0]))
}
