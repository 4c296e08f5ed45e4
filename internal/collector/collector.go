// Package collector aggregates event occurrences from every configured
// source: it fans out to the adapters, merges their outputs in fixed
// precedence order, deduplicates, sorts and writes through to the fallback
// cache.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/church-studio/venue-api/internal/occurrence"
	"github.com/church-studio/venue-api/internal/store"
)

// Source is one upstream origin of occurrences. Implementations never
// return an error: internal failures are logged inside the adapter and
// yield an empty list, so one failing source never blocks the others.
type Source interface {
	Name() string
	Occurrences(ctx context.Context) []occurrence.Occurrence
}

// Collector runs the adapters and owns the merged view.
type Collector struct {
	// sources in precedence order; on duplicate occurrences the
	// earlier source wins.
	sources []Source
	store   *store.Memory
	flight  singleflight.Group
}

// New creates a collector over the given sources, in precedence order.
func New(st *store.Memory, sources ...Source) *Collector {
	return &Collector{sources: sources, store: st}
}

// Collect runs all adapters concurrently, merges their results in
// precedence order, drops occurrences without a start instant,
// deduplicates keeping the first occurrence seen, sorts ascending by start
// and writes every survivor into the cache.
func (c *Collector) Collect(ctx context.Context) []occurrence.Occurrence {
	results := make([][]occurrence.Occurrence, len(c.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range c.sources {
		g.Go(func() error {
			results[i] = src.Occurrences(gctx)
			return nil
		})
	}
	// Adapters swallow their own errors; this only waits for the fan-out.
	_ = g.Wait()

	merged := c.merge(results)

	for _, occ := range merged {
		c.store.Put(occ.ID, occ)
	}

	return merged
}

func (c *Collector) merge(results [][]occurrence.Occurrence) []occurrence.Occurrence {
	seen := make(map[string]struct{})
	var merged []occurrence.Occurrence

	for i, occs := range results {
		kept := 0
		for _, occ := range occs {
			if occ.StartsAt == nil {
				continue
			}
			key := occ.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, occ)
			kept++
		}
		slog.Debug("collector merged source", "source", c.sources[i].Name(), "fetched", len(occs), "kept", kept)
	}

	occurrence.SortByStart(merged)
	return merged
}

// CollectOrCached serves the live merged view, falling back to the cache
// when live collection fails. Concurrent callers share one in-flight
// collection.
func (c *Collector) CollectOrCached(ctx context.Context) []occurrence.Occurrence {
	v, err, _ := c.flight.Do("collect", func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("collect panicked: %v", r)
			}
		}()
		return c.Collect(ctx), nil
	})
	if err != nil {
		slog.Warn("live collection failed, serving cache", "error", err, "cached", c.store.Len())
		cached := c.store.Values()
		occurrence.SortByStart(cached)
		return cached
	}
	return v.([]occurrence.Occurrence)
}
