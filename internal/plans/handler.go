package plans

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/church-studio/venue-api/internal/core/errors"
)

// Handler serves the membership plans listing.
type Handler struct {
	client *Client
}

// NewHandler creates the plans handler.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes registers the plans API routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/plans", h.HandlePlans)
}

// HandlePlans handles GET /api/plans.
func (h *Handler) HandlePlans(c *gin.Context) {
	plans, err := h.client.FetchPlans(c.Request.Context())
	if err != nil {
		var unauth *ErrUnauthorized
		if errors.As(err, &unauth) {
			slog.Warn("billing provider rejected credentials", "status", unauth.Status)
			c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
				ErrorType: httperr.HttpUpstreamAuthError,
				Message:   "Billing provider rejected our credentials",
			})
			return
		}

		slog.Error("plans fetch failed", "error", err)
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamError,
			Message:   "Failed to fetch plans",
			Details:   err.Error(),
		})
		return
	}

	if plans == nil {
		plans = []Plan{}
	}
	c.JSON(http.StatusOK, gin.H{
		"plans": plans,
		"count": len(plans),
	})
}
