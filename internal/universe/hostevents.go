package universe

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/church-studio/venue-api/internal/occurrence"
)

const hostNameQuery = `query($id: ID!){ host(id:$id){ id name } }`

const hostEventsQuery = `
  query HostEventsPaged($id: ID!) {
    host(id: $id) {
      events {
        nodes { id title url description address timeSlots { nodes { startAt endAt } } }
      }
    }
  }
`

const eventTimeSlotsQuery = `
  query EventWithLegacyTS($id: ID!) {
    event(id:$id) { id timeSlots { nodes { startAt endAt } } }
  }
`

type gqlHostName struct {
	Host struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"host"`
}

type gqlSlot struct {
	StartAt   string `json:"startAt"`
	StartTime string `json:"start_time"`
	StartDate string `json:"startDate"`
	EndAt     string `json:"endAt"`
}

func (s gqlSlot) start() string {
	if s.StartAt != "" {
		return s.StartAt
	}
	if s.StartTime != "" {
		return s.StartTime
	}
	return s.StartDate
}

type gqlEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Address     string `json:"address"`
	TimeSlots   struct {
		Nodes []gqlSlot `json:"nodes"`
	} `json:"timeSlots"`
}

type gqlHostEvents struct {
	Host struct {
		Events struct {
			Nodes []gqlEvent `json:"nodes"`
		} `json:"events"`
	} `json:"host"`
}

type gqlEventSlots struct {
	Event struct {
		ID        string `json:"id"`
		TimeSlots struct {
			Nodes []gqlSlot `json:"nodes"`
		} `json:"timeSlots"`
	} `json:"event"`
}

// HostEventsSource fetches the configured host's events over the
// authenticated GraphQL API, one occurrence per (event, time slot) pair.
type HostEventsSource struct {
	client      *Client
	organizerID string
}

// NewHostEventsSource creates the GraphQL adapter for the given host id.
func NewHostEventsSource(client *Client, organizerID string) *HostEventsSource {
	return &HostEventsSource{client: client, organizerID: organizerID}
}

func (s *HostEventsSource) Name() string { return "universe-graphql" }

// Occurrences fetches and normalizes the host's events. Token failures,
// GraphQL errors and malformed nodes abort only this adapter's
// contribution.
func (s *HostEventsSource) Occurrences(ctx context.Context) []occurrence.Occurrence {
	if s.organizerID == "" {
		return nil
	}

	hostName := s.fetchHostName(ctx)
	events := s.fetchHostEvents(ctx)

	var out []occurrence.Occurrence
	for _, ev := range events {
		slots := ev.TimeSlots.Nodes
		if len(slots) == 0 {
			slots = s.fetchEventSlots(ctx, ev.ID)
		}

		for _, ts := range slots {
			start := ts.start()
			if start == "" {
				continue
			}
			out = append(out, occurrence.Normalize(
				occurrence.RawEvent{
					ID:          ev.ID,
					URL:         ev.URL,
					Title:       ev.Title,
					Description: ev.Description,
					Address:     ev.Address,
				},
				occurrence.RawSlot{StartAt: start},
				hostName,
			))
		}
	}
	return out
}

func (s *HostEventsSource) fetchHostName(ctx context.Context) string {
	data := s.client.GQLSafe(ctx, hostNameQuery, map[string]any{"id": s.organizerID})
	if data == nil {
		return ""
	}
	var host gqlHostName
	if err := json.Unmarshal(data, &host); err != nil {
		slog.Warn("universe host name decode failed", "error", err)
		return ""
	}
	return host.Host.Name
}

func (s *HostEventsSource) fetchHostEvents(ctx context.Context) []gqlEvent {
	data := s.client.GQLSafe(ctx, hostEventsQuery, map[string]any{"id": s.organizerID})
	if data == nil {
		return nil
	}
	var resp gqlHostEvents
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Warn("universe host events decode failed", "error", err)
		return nil
	}
	return resp.Host.Events.Nodes
}

func (s *HostEventsSource) fetchEventSlots(ctx context.Context, eventID string) []gqlSlot {
	data := s.client.GQLSafe(ctx, eventTimeSlotsQuery, map[string]any{"id": eventID})
	if data == nil {
		return nil
	}
	var resp gqlEventSlots
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Warn("universe event time slots decode failed", "error", err, "event_id", eventID)
		return nil
	}
	return resp.Event.TimeSlots.Nodes
}
