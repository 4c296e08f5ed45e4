// Package occurrence defines the canonical event occurrence record and the
// normalizer that maps every upstream source shape onto it. Nothing reaches
// the collector un-normalized.
package occurrence

import (
	"sort"
	"strings"
	"time"
)

// Occurrence is one concrete dated instance of an event. It is the unit the
// query layer filters, sorts and returns.
type Occurrence struct {
	// ID is derived from the source id (or URL, or title) plus the ISO start
	// instant, so re-normalizing the same input yields the same id.
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	StartsAt    *string `json:"startsAt"` // RFC 3339 UTC, nil when the source carried no start
	Location    string  `json:"location"`
	PurchaseURL *string `json:"purchaseUrl"`
	Description string  `json:"description"`

	// SourceEventID is a weak back-reference to the upstream event id, kept
	// for debugging. It never participates in equality.
	SourceEventID *string `json:"sourceEventId"`
}

// StartTime parses StartsAt. ok is false when the occurrence has no start
// instant; such occurrences are dropped before merge and are never queryable
// by day.
func (o Occurrence) StartTime() (time.Time, bool) {
	if o.StartsAt == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *o.StartsAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DedupKey collapses duplicates seen from multiple sources: lowercased
// trimmed title, exact start string, lowercased trimmed location. Empty
// parts are skipped, matching the upstream contract.
func (o Occurrence) DedupKey() string {
	parts := make([]string, 0, 3)
	if t := strings.ToLower(strings.TrimSpace(o.Title)); t != "" {
		parts = append(parts, t)
	}
	if o.StartsAt != nil && *o.StartsAt != "" {
		parts = append(parts, *o.StartsAt)
	}
	if l := strings.ToLower(strings.TrimSpace(o.Location)); l != "" {
		parts = append(parts, l)
	}
	return strings.Join(parts, "|")
}

// SortByStart orders occurrences ascending by start instant, in place.
// Occurrences without a start sort first and are expected to have been
// dropped already.
func SortByStart(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		ti, iok := occs[i].StartTime()
		tj, jok := occs[j].StartTime()
		if iok != jok {
			return !iok
		}
		return ti.Before(tj)
	})
}
