package universe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/church-studio/venue-api/internal/core/config"
)

func TestCrawlEventURLs(t *testing.T) {
	s := NewCrawlSource(config.UniverseConfig{APIBase: "https://www.universe.com"})

	html := `
		<a href="https://www.universe.com/events/jazz-night-ABC123">Jazz</a>
		<a href="/events/blues-night-DEF456">Blues</a>
		<a href="/events/jazz-night-ABC123">Jazz again</a>
		<a href="/about">Not an event</a>
	`
	urls := s.eventURLs(html)

	require.Equal(t, []string{
		"https://www.universe.com/events/jazz-night-ABC123",
		"https://www.universe.com/events/blues-night-DEF456",
	}, urls)
}

func TestCrawlEventURLsRespectsPageLimit(t *testing.T) {
	s := NewCrawlSource(config.UniverseConfig{APIBase: "https://www.universe.com"})

	var b strings.Builder
	for i := 0; i < crawlPageLimit+30; i++ {
		fmt.Fprintf(&b, `<a href="/events/show-%d-x">show</a>`, i)
	}

	require.Len(t, s.eventURLs(b.String()), crawlPageLimit)
}

func TestCrawlOccurrences(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/users/the-church-studio", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/events/show-one-a">one</a><a href="/events/show-two-b">two</a>`))
	})
	mux.HandleFunc("/events/show-one-a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ldPage(`{"@type":"Event","name":"Show One","startDate":"2024-06-02T18:00:00Z"}`)))
	})
	mux.HandleFunc("/events/show-two-b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ldPage(`{"@type":"Event","name":"Show Two","startDate":"2024-06-01T18:00:00Z"}`)))
	})

	s := NewCrawlSource(config.UniverseConfig{
		APIBase:       srv.URL,
		OrganizerSlug: "the-church-studio",
		CrawlWorkers:  2,
	})

	occs := s.Occurrences(context.Background())
	require.Len(t, occs, 2)
	// Sorted by start, not by page order.
	require.Equal(t, "Show Two", occs[0].Title)
	require.Equal(t, "Show One", occs[1].Title)
}

func TestCrawlToleratesBrokenEventPages(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/users/slug", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/events/good-a">g</a><a href="/events/broken-b">b</a>`))
	})
	mux.HandleFunc("/events/good-a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ldPage(`{"@type":"Event","name":"Good","startDate":"2024-06-01T18:00:00Z"}`)))
	})
	mux.HandleFunc("/events/broken-b", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := NewCrawlSource(config.UniverseConfig{APIBase: srv.URL, OrganizerSlug: "slug", CrawlWorkers: 2})

	occs := s.Occurrences(context.Background())
	require.Len(t, occs, 1)
	require.Equal(t, "Good", occs[0].Title)
}

func TestCrawlDisabledWithoutSlug(t *testing.T) {
	s := NewCrawlSource(config.UniverseConfig{APIBase: "https://www.universe.com"})
	require.Empty(t, s.Occurrences(context.Background()))
}
