package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/httpx"
	"github.com/church-studio/venue-api/internal/occurrence"
)

// flexString accepts a JSON string or number; upstream event ids arrive as
// either.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*s = ""
		return nil
	}
	*s = flexString(n.String())
	return nil
}

type namedThing struct {
	Name string `json:"name"`
}

type publicSlot struct {
	StartAtSnake string `json:"start_at"`
	StartAtCamel string `json:"startAt"`
	StartTime    string `json:"start_time"`
	StartDate    string `json:"startDate"`
}

func (s publicSlot) start() string {
	switch {
	case s.StartAtSnake != "":
		return s.StartAtSnake
	case s.StartAtCamel != "":
		return s.StartAtCamel
	case s.StartTime != "":
		return s.StartTime
	default:
		return s.StartDate
	}
}

type publicEvent struct {
	ID     flexString `json:"id"`
	Title  string     `json:"title"`
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	WebURL string     `json:"web_url"`
	Links  struct {
		Self string `json:"self"`
	} `json:"links"`
	Venue       namedThing `json:"venue"`
	Location    namedThing `json:"location"`
	PurchaseURL string     `json:"purchase_url"`
	TicketsURL  string     `json:"tickets_url"`
	Description string     `json:"description"`

	TimeSlots    []publicSlot `json:"time_slots"`
	TimeSlotsAlt []publicSlot `json:"timeslots"`
	Occurrences  []publicSlot `json:"occurrences"`

	publicSlot // single-occurrence events carry the start fields inline
}

func (e publicEvent) slots() []publicSlot {
	if len(e.TimeSlots) > 0 {
		return e.TimeSlots
	}
	if len(e.TimeSlotsAlt) > 0 {
		return e.TimeSlotsAlt
	}
	return e.Occurrences
}

func (e publicEvent) eventURL() string {
	if e.URL != "" {
		return e.URL
	}
	if e.WebURL != "" {
		return e.WebURL
	}
	return e.Links.Self
}

// PublicJSONSource lists the organizer's events from the public REST API.
// Several URL shapes exist in the wild; the first one that answers with
// parseable JSON wins.
type PublicJSONSource struct {
	cfg  config.UniverseConfig
	http *http.Client
}

// NewPublicJSONSource creates the public JSON adapter.
func NewPublicJSONSource(cfg config.UniverseConfig) *PublicJSONSource {
	return &PublicJSONSource{cfg: cfg, http: httpx.NewClient(httpx.DefaultTimeout)}
}

func (s *PublicJSONSource) Name() string { return "universe-public-json" }

func (s *PublicJSONSource) candidateURLs() []string {
	slug := url.PathEscape(s.cfg.OrganizerSlug)
	base := s.cfg.APIBase
	return []string{
		fmt.Sprintf("%s/api/v2/users/%s/events?state=upcoming&per_page=200", base, slug),
		fmt.Sprintf("%s/api/v2/organizers/%s/events?state=upcoming&per_page=200", base, slug),
		fmt.Sprintf("%s/api/v2/%s/events?state=upcoming&per_page=200", base, slug),
	}
}

// Occurrences tries each candidate URL in order and normalizes the first
// JSON body that parses. Every failure is adapter-local.
func (s *PublicJSONSource) Occurrences(ctx context.Context) []occurrence.Occurrence {
	if s.cfg.OrganizerSlug == "" {
		return nil
	}

	for _, u := range s.candidateURLs() {
		events, ok := s.fetchEvents(ctx, u)
		if !ok {
			continue
		}

		var out []occurrence.Occurrence
		for _, ev := range events {
			out = append(out, normalizePublicEvent(ev)...)
		}
		occurrence.SortByStart(out)
		return out
	}

	return nil
}

func (s *PublicJSONSource) fetchEvents(ctx context.Context, u string) ([]publicEvent, bool) {
	ctx, cancel := context.WithTimeout(ctx, publicFetchTimeout)
	defer cancel()

	headers := map[string]string{"Accept": "application/json"}
	if s.cfg.AccessToken != "" {
		headers["Authorization"] = "Bearer " + s.cfg.AccessToken
	}

	req, err := httpx.NewRequest(ctx, http.MethodGet, u, nil, headers)
	if err != nil {
		slog.Warn("universe public-json request failed", "error", err)
		return nil, false
	}

	resp, err := s.http.Do(req)
	if err != nil {
		slog.Warn("universe public-json fetch failed", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, false
	}

	// Either a top-level array or an envelope with a data array.
	var events []publicEvent
	if err := json.Unmarshal(raw, &events); err == nil {
		return events, true
	}
	var envelope struct {
		Data []publicEvent `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("universe public-json body is not JSON", "url", u, "error", err)
		return nil, false
	}
	return envelope.Data, true
}

func normalizePublicEvent(ev publicEvent) []occurrence.Occurrence {
	raw := occurrence.RawEvent{
		ID:          string(ev.ID),
		URL:         ev.eventURL(),
		Title:       ev.Title,
		Name:        ev.Name,
		Description: ev.Description,
		VenueName:   ev.Venue.Name,
	}
	if raw.VenueName == "" {
		raw.VenueName = ev.Location.Name
	}
	if ev.PurchaseURL != "" {
		raw.OfferURL = ev.PurchaseURL
	} else if ev.TicketsURL != "" {
		raw.OfferURL = ev.TicketsURL
	}

	slots := ev.slots()
	if len(slots) == 0 {
		start := ev.publicSlot.start()
		if start == "" {
			return nil
		}
		return []occurrence.Occurrence{
			occurrence.Normalize(raw, occurrence.RawSlot{StartAt: start}, ""),
		}
	}

	var out []occurrence.Occurrence
	for _, slot := range slots {
		start := slot.start()
		if start == "" {
			continue
		}
		out = append(out, occurrence.Normalize(raw, occurrence.RawSlot{StartAt: start}, ""))
	}
	return out
}
