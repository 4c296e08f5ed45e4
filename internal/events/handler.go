package events

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/church-studio/venue-api/internal/core/errors"
	"github.com/church-studio/venue-api/internal/occurrence"
)

// Response is the day-query response body.
type Response struct {
	Events []occurrence.Occurrence `json:"events"`
	Count  int                     `json:"count"`
	Note   string                  `json:"note"`
	Source string                  `json:"source"`
}

const responseSource = "fetch-or-cache"

// RegisterRoutes registers the events API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/events/today", s.HandleToday)
	r.GET("/api/events/day", s.HandleDay)
}

// HandleToday handles GET /api/events/today?tz=<IANA>.
func (s *Service) HandleToday(c *gin.Context) {
	loc, ok := bindTimezone(c)
	if !ok {
		return
	}

	res := s.Today(c.Request.Context(), loc)
	writeResult(c, res)
}

// HandleDay handles GET /api/events/day?date=YYYY-MM-DD&tz=<IANA>.
func (s *Service) HandleDay(c *gin.Context) {
	loc, ok := bindTimezone(c)
	if !ok {
		return
	}

	date := strings.TrimSpace(c.Query("date"))
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpBadRequestError,
			Message:   "Bad date, expected YYYY-MM-DD",
		})
		return
	}

	res := s.Day(c.Request.Context(), parsed.Year(), parsed.Month(), parsed.Day(), loc)
	writeResult(c, res)
}

func bindTimezone(c *gin.Context) (*time.Location, bool) {
	tz := strings.TrimSpace(c.Query("tz"))
	if tz == "" {
		tz = DefaultTimezone
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpBadRequestError,
			Message:   "Unknown timezone",
			Details:   tz,
		})
		return nil, false
	}
	return loc, true
}

func writeResult(c *gin.Context, res Result) {
	events := res.Events
	if events == nil {
		events = []occurrence.Occurrence{}
	}
	c.JSON(http.StatusOK, Response{
		Events: events,
		Count:  len(events),
		Note:   res.Note,
		Source: responseSource,
	})
}
