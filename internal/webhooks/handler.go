// Package webhooks ingests push deliveries from the ticketing SaaS. It is a
// side-channel writer: verified payloads are normalized and merged straight
// into the occurrence cache, bypassing the collector.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-studio/venue-api/internal/occurrence"
	"github.com/church-studio/venue-api/internal/store"
)

// Handler verifies and ingests ticketing webhooks.
type Handler struct {
	secret  string
	store   *store.Memory
	maxBody int64
	now     func() time.Time
}

// NewHandler creates the webhook handler. An empty secret disables
// signature verification (development only; the sender always signs in
// production).
func NewHandler(secret string, st *store.Memory, maxBodyBytes int64) *Handler {
	return &Handler{
		secret:  secret,
		store:   st,
		maxBody: maxBodyBytes,
		now:     time.Now,
	}
}

// RegisterRoutes registers the webhook routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/webhooks/universe", h.HandleDelivery)
	r.OPTIONS("/api/webhooks/universe", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/webhooks/universe", func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed,
			"Universe webhook endpoint: use POST with raw body and X-Universe-Signature (HMAC-SHA256).")
	})
}

type deliveryPayload struct {
	Type   string            `json:"type"`
	Event  json.RawMessage   `json:"event"`
	Events []json.RawMessage `json:"events"`
	Data   struct {
		Event  json.RawMessage   `json:"event"`
		Events []json.RawMessage `json:"events"`
	} `json:"data"`
	Host struct {
		Name string `json:"name"`
	} `json:"host"`
}

// slotList accepts both {"nodes": [...]} and a bare array, the two shapes
// deliveries carry time slots in.
type slotList []deliverySlot

func (l *slotList) UnmarshalJSON(b []byte) error {
	var direct []deliverySlot
	if err := json.Unmarshal(b, &direct); err == nil {
		*l = direct
		return nil
	}
	var wrapped struct {
		Nodes []deliverySlot `json:"nodes"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		*l = nil
		return nil
	}
	*l = wrapped.Nodes
	return nil
}

type deliverySlot struct {
	StartAt   string `json:"startAt"`
	StartDate string `json:"startDate"`
	StartTime string `json:"start_time"`
}

func (s deliverySlot) start() string {
	if s.StartAt != "" {
		return s.StartAt
	}
	if s.StartTime != "" {
		return s.StartTime
	}
	return s.StartDate
}

type deliveryEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	StartDate   string   `json:"startDate"`
	StartAt     string   `json:"startAt"`
	TimeSlots   slotList `json:"timeSlots"`
	Occurrences slotList `json:"occurrences"`
}

type deliveryResponse struct {
	OK             bool                    `json:"ok"`
	ReceivedAt     string                  `json:"received_at"`
	EventType      string                  `json:"event_type"`
	Counts         deliveryCounts          `json:"counts"`
	UpcomingEvents []occurrence.Occurrence `json:"upcoming_events"`
	PastEvents     []occurrence.Occurrence `json:"past_events"`
}

type deliveryCounts struct {
	OccurrencesInPayload int `json:"occurrences_in_payload"`
	Upcoming             int `json:"upcoming"`
	Past                 int `json:"past"`
}

// HandleDelivery handles POST /api/webhooks/universe. A bad signature is
// rejected before any parsing; once the sender is authenticated the
// response is always a success acknowledgment so local bugs never trigger
// sender retry storms.
func (h *Handler) HandleDelivery(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody))
	if err != nil {
		slog.Error("webhook body read failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"ok": true, "error": "handler_error", "message": "read failed"})
		return
	}

	if h.secret != "" && !h.verifySignature(c, body) {
		c.String(http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload deliveryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.String(http.StatusBadRequest, "bad json")
		return
	}

	eventType := firstHeader(c, "X-Uniiverse-Event", "X-Universe-Event")
	if eventType == "" {
		eventType = payload.Type
	}
	if eventType == "" {
		eventType = "unknown"
	}

	occs := normalizeDelivery(payload)
	upcoming, past := h.splitByTime(occs)

	merged := 0
	for _, occ := range upcoming {
		if h.store.PutIfAbsent(occ.ID, occ) {
			merged++
		}
	}

	slog.Info("webhook delivery ingested",
		"event_type", eventType,
		"occurrences", len(occs),
		"upcoming", len(upcoming),
		"past", len(past),
		"merged", merged,
	)

	c.JSON(http.StatusOK, deliveryResponse{
		OK:         true,
		ReceivedAt: h.now().UTC().Format(time.RFC3339),
		EventType:  eventType,
		Counts: deliveryCounts{
			OccurrencesInPayload: len(occs),
			Upcoming:             len(upcoming),
			Past:                 len(past),
		},
		UpcomingEvents: upcoming,
		PastEvents:     past,
	})
}

// verifySignature checks the delivery signature against the hex,
// "sha256="-prefixed-hex and base64 encodings of the expected HMAC-SHA256
// digest; senders have shipped all three over time.
func (h *Handler) verifySignature(c *gin.Context, body []byte) bool {
	raw := strings.TrimSpace(firstHeader(c, "X-Uniiverse-Signature", "X-Universe-Signature"))

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	digest := mac.Sum(nil)

	hexSig := hex.EncodeToString(digest)
	prefixed := "sha256=" + hexSig
	b64 := base64.StdEncoding.EncodeToString(digest)

	return constantTimeEqual(raw, hexSig) ||
		constantTimeEqual(strings.ToLower(raw), prefixed) ||
		constantTimeEqual(raw, b64)
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeDelivery(payload deliveryPayload) []occurrence.Occurrence {
	var raws []json.RawMessage
	if len(payload.Event) > 0 {
		raws = append(raws, payload.Event)
	}
	raws = append(raws, payload.Events...)
	if len(payload.Data.Event) > 0 {
		raws = append(raws, payload.Data.Event)
	}
	raws = append(raws, payload.Data.Events...)

	var out []occurrence.Occurrence
	for _, raw := range raws {
		var ev deliveryEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}

		slots := ev.TimeSlots
		if len(slots) == 0 {
			slots = ev.Occurrences
		}
		if len(slots) == 0 {
			// Single-occurrence event; synthesize one slot.
			slots = slotList{{StartDate: firstNonEmpty(ev.StartDate, ev.StartAt)}}
		}

		rawEv := occurrence.RawEvent{
			ID:          ev.ID,
			URL:         ev.URL,
			Title:       ev.Title,
			Name:        ev.Name,
			Description: ev.Description,
			Address:     ev.Address,
		}
		for _, slot := range slots {
			occ := occurrence.Normalize(rawEv, occurrence.RawSlot{StartDate: slot.start()}, payload.Host.Name)
			if occ.StartsAt != nil {
				out = append(out, occ)
			}
		}
	}
	return out
}

// splitByTime partitions occurrences around now: upcoming ascending, past
// descending. Only the upcoming ones are merged into the cache.
func (h *Handler) splitByTime(occs []occurrence.Occurrence) (upcoming, past []occurrence.Occurrence) {
	upcoming = []occurrence.Occurrence{}
	past = []occurrence.Occurrence{}
	now := h.now()

	for _, occ := range occs {
		start, ok := occ.StartTime()
		if !ok {
			continue
		}
		if start.Before(now) {
			past = append(past, occ)
		} else {
			upcoming = append(upcoming, occ)
		}
	}

	occurrence.SortByStart(upcoming)
	sort.SliceStable(past, func(i, j int) bool {
		ti, _ := past[i].StartTime()
		tj, _ := past[j].StartTime()
		return tj.Before(ti)
	})
	return upcoming, past
}

func firstHeader(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
