package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	httperr "github.com/church-studio/venue-api/internal/core/errors"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func TestHandleToday(t *testing.T) {
	// Jan 15, 10am Chicago.
	now := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)
	svc := newTestService(now,
		occ("tonight", "2024-01-16T01:00:00Z"),
		occ("tomorrow", "2024-01-16T18:00:00Z"),
	)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events/today", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, NoteEventsToday, resp.Note)
	require.Equal(t, "fetch-or-cache", resp.Source)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "tonight", resp.Events[0].ID)
}

func TestHandleTodayEmptyListIsNotNull(t *testing.T) {
	svc := newTestService(time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC))
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events/today", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"events":[]`)
}

func TestHandleTodayUnknownTimezone(t *testing.T) {
	svc := newTestService(time.Now())
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events/today?tz=Mars/Olympus", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, httperr.HttpBadRequestError, resp.ErrorType)
}

func TestHandleDay(t *testing.T) {
	svc := newTestService(time.Now(),
		occ("evening", "2024-01-16T01:00:00Z"), // Jan 15 in Chicago
		occ("other-day", "2024-01-16T18:00:00Z"),
	)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events/day?date=2024-01-15&tz=America/Chicago", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, NoteEventsDay, resp.Note)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "evening", resp.Events[0].ID)
}

func TestHandleDayRejectsBadDates(t *testing.T) {
	svc := newTestService(time.Now())
	r := newTestRouter(svc)

	for _, date := range []string{"2024-13-40", "01/15/2024", "not-a-date", ""} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/events/day?date="+date, nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code, "date %q", date)
		require.Contains(t, w.Body.String(), "Bad date", "date %q", date)
	}
}
