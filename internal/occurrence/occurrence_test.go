package occurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStartTime(t *testing.T) {
	t.Run("parses RFC3339", func(t *testing.T) {
		o := Occurrence{StartsAt: strPtr("2024-01-15T18:00:00Z")}
		ts, ok := o.StartTime()
		require.True(t, ok)
		require.Equal(t, time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC), ts.UTC())
	})

	t.Run("nil start has no instant", func(t *testing.T) {
		_, ok := Occurrence{}.StartTime()
		require.False(t, ok)
	})

	t.Run("garbage start has no instant", func(t *testing.T) {
		_, ok := Occurrence{StartsAt: strPtr("not-a-date")}.StartTime()
		require.False(t, ok)
	})
}

func TestDedupKey(t *testing.T) {
	t.Run("title case and whitespace are ignored", func(t *testing.T) {
		a := Occurrence{Title: "  Jazz Night ", StartsAt: strPtr("2024-01-15T18:00:00Z"), Location: "The Church Studio"}
		b := Occurrence{Title: "jazz night", StartsAt: strPtr("2024-01-15T18:00:00Z"), Location: "  THE CHURCH STUDIO  "}
		require.Equal(t, a.DedupKey(), b.DedupKey())
	})

	t.Run("start string is compared exactly", func(t *testing.T) {
		// Same instant, different textual representations: distinct keys.
		a := Occurrence{Title: "Jazz Night", StartsAt: strPtr("2024-01-15T18:00:00Z")}
		b := Occurrence{Title: "Jazz Night", StartsAt: strPtr("2024-01-15T12:00:00-06:00")}
		require.NotEqual(t, a.DedupKey(), b.DedupKey())
	})

	t.Run("empty parts are skipped", func(t *testing.T) {
		o := Occurrence{Title: "Jazz Night", Location: "Tulsa"}
		require.Equal(t, "jazz night|tulsa", o.DedupKey())
	})
}

func TestSortByStart(t *testing.T) {
	occs := []Occurrence{
		{ID: "c", StartsAt: strPtr("2024-03-01T00:00:00Z")},
		{ID: "a", StartsAt: strPtr("2024-01-01T00:00:00Z")},
		{ID: "b", StartsAt: strPtr("2024-02-01T00:00:00Z")},
	}
	SortByStart(occs)

	ids := []string{occs[0].ID, occs[1].ID, occs[2].ID}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}
