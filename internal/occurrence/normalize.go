package occurrence

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawEvent is the source-agnostic event shape adapters hand to Normalize.
// Each adapter owns the parsing from its wire format into this struct; the
// field-resolution fallback chains live here, in one place.
type RawEvent struct {
	ID          string
	URL         string
	Title       string
	Name        string
	Description string
	StartDate   string

	Address      string
	VenueName    string
	LocationName string
	Locality     string
	Region       string

	OfferURL  string   // single-offer url
	OfferURLs []string // urls from an offers list, in document order
}

// RawSlot carries one time slot of an event. Sources disagree on the field
// name for the start instant; the resolution order is fixed.
type RawSlot struct {
	StartAt   string
	StartDate string
	StartTime string
	URL       string
}

// Normalize maps an event-like object plus an optional slot onto exactly one
// Occurrence. It is pure and never fails: untrusted upstream data falls back
// to safe defaults instead of erroring.
func Normalize(ev RawEvent, slot RawSlot, hostName string) Occurrence {
	startRaw := firstNonEmpty(slot.StartAt, slot.StartDate, slot.StartTime, ev.StartDate)

	var startsAt *string
	idSuffix := uuid.NewString()
	if startRaw != "" {
		if t, ok := ParseInstant(startRaw); ok {
			iso := t.UTC().Format(time.RFC3339)
			startsAt = &iso
			idSuffix = iso
		}
	}

	idSource := firstNonEmpty(ev.ID, ev.URL, ev.Title, ev.Name, "event")

	var purchaseURL *string
	if u := resolvePurchaseURL(ev, slot); u != "" {
		purchaseURL = &u
	}

	var sourceEventID *string
	if ev.ID != "" {
		id := ev.ID
		sourceEventID = &id
	}

	return Occurrence{
		ID:            idSource + ":" + idSuffix,
		Title:         firstNonEmpty(ev.Title, ev.Name, "Untitled"),
		StartsAt:      startsAt,
		Location:      resolveLocation(ev, hostName),
		PurchaseURL:   purchaseURL,
		Description:   ev.Description,
		SourceEventID: sourceEventID,
	}
}

func resolvePurchaseURL(ev RawEvent, slot RawSlot) string {
	if ev.OfferURL != "" {
		return ev.OfferURL
	}
	for _, u := range ev.OfferURLs {
		if u != "" {
			return u
		}
	}
	return firstNonEmpty(ev.URL, slot.URL)
}

func resolveLocation(ev RawEvent, hostName string) string {
	if ev.Address != "" {
		return ev.Address
	}
	if ev.VenueName != "" {
		return ev.VenueName
	}
	if ev.LocationName != "" {
		return ev.LocationName
	}
	joined := joinNonEmpty(", ", ev.Locality, ev.Region)
	if joined != "" {
		return joined
	}
	return hostName
}

// instantLayouts are tried in order when parsing upstream start instants.
// Date-only values resolve to UTC midnight.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses the instant formats seen across all four sources.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
