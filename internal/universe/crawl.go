package universe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/httpx"
	"github.com/church-studio/venue-api/internal/occurrence"
)

// crawlPageLimit caps how many event-detail pages one crawl will fetch.
const crawlPageLimit = 120

var (
	absEventLinkRE = regexp.MustCompile(`(?i)https?://(?:www\.)?universe\.com/events/[a-z0-9-]+(?:-[A-Z0-9]+)?(?:\?[^\s"'<>)]*)?`)
	relEventLinkRE = regexp.MustCompile(`(?i)href=["']/events/[a-z0-9-]+(?:-[A-Z0-9]+)?(?:\?[^\s"'<>)]*)?["']`)
)

// CrawlSource scrapes the organizer's public listing page for event links
// and extracts JSON-LD structured data from each event page. It is the most
// expensive adapter and the most failure-tolerant: a single bad page
// contributes zero occurrences.
type CrawlSource struct {
	cfg  config.UniverseConfig
	http *http.Client
}

// NewCrawlSource creates the public crawl adapter.
func NewCrawlSource(cfg config.UniverseConfig) *CrawlSource {
	return &CrawlSource{cfg: cfg, http: httpx.NewClient(httpx.DefaultTimeout)}
}

func (s *CrawlSource) Name() string { return "universe-public-crawl" }

func (s *CrawlSource) listingURLs() []string {
	slug := url.PathEscape(s.cfg.OrganizerSlug)
	base := s.cfg.APIBase
	return []string{
		fmt.Sprintf("%s/users/%s", base, slug),
		fmt.Sprintf("%s/users/%s/events", base, slug),
		fmt.Sprintf("%s/%s", base, slug),
		fmt.Sprintf("%s/users/%s/events?view=list&sort=upcoming", base, slug),
		fmt.Sprintf("%s/users/%s?view=list&sort=upcoming", base, slug),
	}
}

// Occurrences crawls the organizer's public pages. All failures are
// adapter-local.
func (s *CrawlSource) Occurrences(ctx context.Context) []occurrence.Occurrence {
	if s.cfg.OrganizerSlug == "" {
		return nil
	}

	html := s.fetchListing(ctx)
	if html == "" {
		return nil
	}

	urls := s.eventURLs(html)
	if len(urls) == 0 {
		return nil
	}

	out := s.fetchEventPages(ctx, urls)
	occurrence.SortByStart(out)
	return out
}

func (s *CrawlSource) fetchListing(ctx context.Context) string {
	for _, u := range s.listingURLs() {
		html, err := s.fetchHTML(ctx, u, "text/html")
		if err != nil {
			slog.Warn("universe crawl listing fetch failed", "url", u, "error", err)
			continue
		}
		if html != "" {
			return html
		}
	}
	return ""
}

// eventURLs extracts event-detail links from the listing HTML, both
// absolute and relative, deduplicated in document order.
func (s *CrawlSource) eventURLs(html string) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(u string) {
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	for _, u := range absEventLinkRE.FindAllString(html, -1) {
		add(u)
	}
	for _, m := range relEventLinkRE.FindAllString(html, -1) {
		path := strings.Trim(strings.TrimPrefix(strings.TrimPrefix(m, "href=\""), "href='"), `"'`)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		add(s.cfg.APIBase + path)
	}

	if len(urls) > crawlPageLimit {
		urls = urls[:crawlPageLimit]
	}
	return urls
}

// fetchEventPages fetches the detail pages with a bounded worker pool so
// the crawl never floods the upstream host.
func (s *CrawlSource) fetchEventPages(ctx context.Context, urls []string) []occurrence.Occurrence {
	workers := s.cfg.CrawlWorkers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan string, len(urls))
	results := make(chan []occurrence.Occurrence, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			var local []occurrence.Occurrence
			for u := range jobs {
				occs, err := s.parseEventPage(ctx, u)
				if err != nil {
					slog.Warn("universe crawl event page failed", "url", u, "error", err)
					continue
				}
				local = append(local, occs...)
			}
			results <- local
		}()
	}

	for _, u := range urls {
		jobs <- u
	}
	close(jobs)

	wg.Wait()
	close(results)

	var out []occurrence.Occurrence
	for local := range results {
		out = append(out, local...)
	}
	return out
}

func (s *CrawlSource) parseEventPage(ctx context.Context, u string) ([]occurrence.Occurrence, error) {
	html, err := s.fetchHTML(ctx, u, "text/html,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	return occurrencesFromJSONLD(html, u), nil
}

func (s *CrawlSource) fetchHTML(ctx context.Context, u, accept string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, publicFetchTimeout)
	defer cancel()

	req, err := httpx.NewRequest(ctx, http.MethodGet, u, nil, map[string]string{"Accept": accept})
	if err != nil {
		return "", err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
