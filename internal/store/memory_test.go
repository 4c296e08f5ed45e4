package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/church-studio/venue-api/internal/occurrence"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()

	_, ok := m.Get("a")
	require.False(t, ok)

	m.Put("a", occurrence.Occurrence{ID: "a", Title: "First"})
	got, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, "First", got.Title)

	m.Put("a", occurrence.Occurrence{ID: "a", Title: "Second"})
	got, _ = m.Get("a")
	require.Equal(t, "Second", got.Title)
	require.Equal(t, 1, m.Len())
}

func TestMemoryPutIfAbsent(t *testing.T) {
	m := NewMemory()

	require.True(t, m.PutIfAbsent("a", occurrence.Occurrence{ID: "a", Title: "Full record"}))
	require.False(t, m.PutIfAbsent("a", occurrence.Occurrence{ID: "a", Title: "Thin record"}))

	got, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, "Full record", got.Title)
}

func TestMemoryValues(t *testing.T) {
	m := NewMemory()
	m.Put("a", occurrence.Occurrence{ID: "a"})
	m.Put("b", occurrence.Occurrence{ID: "b"})

	values := m.Values()
	require.Len(t, values, 2)

	ids := map[string]bool{}
	for _, o := range values {
		ids[o.ID] = true
	}
	require.True(t, ids["a"])
	require.True(t, ids["b"])
}
