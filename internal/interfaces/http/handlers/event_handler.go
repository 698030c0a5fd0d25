package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/personal/ad-lifecycle/internal/application/service"
)

// EventHandler handles HTTP requests for recorded lifecycle events
type EventHandler struct {
	unitService *service.UnitService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(unitService *service.UnitService) *EventHandler {
	return &EventHandler{unitService: unitService}
}

// GetRecentEvents handles GET /api/v1/events/recent
// @Summary Get recent events
// @Description Get the most recent lifecycle and revenue events, newest first
// @Tags events
// @Produce json
// @Param limit query int false "Number of events to return" default(50)
// @Param name query string false "Also count events with this name"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/events/recent [get]
func (h *EventHandler) GetRecentEvents(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Limit must be a positive integer between 1 and 1000",
		})
		return
	}

	events, err := h.unitService.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get events",
			Details: err.Error(),
		})
		return
	}

	response := gin.H{
		"events": events,
		"count":  len(events),
	}

	if name := c.Query("name"); name != "" {
		total, err := h.unitService.CountEvents(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to count events",
				Details: err.Error(),
			})
			return
		}
		response["total"] = total
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes registers all event routes
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/events/recent", h.GetRecentEvents)
	}
}
