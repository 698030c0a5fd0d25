package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// UnitHandler handles HTTP requests for ad unit operations
type UnitHandler struct {
	unitService  *service.UnitService
	validator    *validator.Validate
	dependencies map[string]Pinger
}

// NewUnitHandler creates a new UnitHandler. dependencies are checked by
// the readiness probe.
func NewUnitHandler(unitService *service.UnitService, dependencies map[string]Pinger) *UnitHandler {
	return &UnitHandler{
		unitService:  unitService,
		validator:    validator.New(),
		dependencies: dependencies,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RegisterUnit handles POST /api/v1/units
// @Summary Register an ad unit
// @Description Register a unit and start loading it, or reconfigure an existing one
// @Tags units
// @Accept json
// @Produce json
// @Param unit body service.RegisterUnitRequest true "Unit data"
// @Success 201 {object} service.UnitResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/units [post]
func (h *UnitHandler) RegisterUnit(c *gin.Context) {
	var req service.RegisterUnitRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
		})
		return
	}

	response, err := h.unitService.RegisterUnit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to register unit", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListUnits handles GET /api/v1/units
// @Summary List ad units
// @Tags units
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/units [get]
func (h *UnitHandler) ListUnits(c *gin.Context) {
	units := h.unitService.ListUnits(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"units": units,
		"count": len(units),
	})
}

// GetUnit handles GET /api/v1/units/:format/:name
// @Summary Get ad unit status
// @Tags units
// @Produce json
// @Param format path string true "Ad format"
// @Param name path string true "Unit name"
// @Success 200 {object} service.UnitResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/units/{format}/{name} [get]
func (h *UnitHandler) GetUnit(c *gin.Context) {
	response, err := h.unitService.GetUnit(c.Request.Context(), c.Param("format"), c.Param("name"))
	if err != nil {
		writeError(c, "Failed to get unit", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// LoadUnit handles POST /api/v1/units/:format/:name/load
// @Summary Load an ad
// @Description Request a load and wait for the load cycle to finish
// @Tags units
// @Produce json
// @Success 200 {object} service.LoadResponse
// @Failure 404 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/v1/units/{format}/{name}/load [post]
func (h *UnitHandler) LoadUnit(c *gin.Context) {
	response, err := h.unitService.LoadUnit(c.Request.Context(), c.Param("format"), c.Param("name"))
	if err != nil {
		writeError(c, "Failed to load unit", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ShowUnit handles POST /api/v1/units/:format/:name/show
// @Summary Show an ad
// @Description Request a presentation and wait until it starts or is rejected
// @Tags units
// @Accept json
// @Produce json
// @Param show body service.ShowRequest false "Show options"
// @Success 200 {object} service.ShowResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/units/{format}/{name}/show [post]
func (h *UnitHandler) ShowUnit(c *gin.Context) {
	var req service.ShowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid request format",
				Details: err.Error(),
			})
			return
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
		})
		return
	}

	response, err := h.unitService.ShowUnit(c.Request.Context(), c.Param("format"), c.Param("name"), &req)
	if err != nil {
		writeError(c, "Failed to show ad", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// BindNative handles POST /api/v1/natives/:name/bind
// @Summary Bind a native ad
// @Description Attach a native unit to a screen and wait for its ad
// @Tags natives
// @Produce json
// @Param screen query string false "Host screen"
// @Success 200 {object} service.NativeResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/natives/{name}/bind [post]
func (h *UnitHandler) BindNative(c *gin.Context) {
	response, err := h.unitService.BindNative(c.Request.Context(), c.Param("name"), c.Query("screen"))
	if err != nil {
		writeError(c, "Failed to bind native ad", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles GET /health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *UnitHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ad-api",
	})
}

// ReadinessCheck handles GET /ready
// @Summary Readiness check
// @Description Check that every configured dependency is reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *UnitHandler) ReadinessCheck(c *gin.Context) {
	checks := make(map[string]string, len(h.dependencies))
	ready := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "ad-api",
		"checks":  checks,
	})
}

// RegisterRoutes registers all unit-related routes
func (h *UnitHandler) RegisterRoutes(router *gin.Engine) {
	// Health checks
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/units", h.ListUnits)
		v1.POST("/units", h.RegisterUnit)
		v1.GET("/units/:format/:name", h.GetUnit)
		v1.POST("/units/:format/:name/load", h.LoadUnit)
		v1.POST("/units/:format/:name/show", h.ShowUnit)

		v1.POST("/natives/:name/bind", h.BindNative)
	}
}

// writeError maps domain errors to HTTP status codes
func writeError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, ad.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ad.ErrInvalidConfiguration):
		status, code = http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, ad.ErrAlreadyShowing):
		status, code = http.StatusConflict, "already_showing"
	case errors.Is(err, ad.ErrNotReady):
		status, code = http.StatusConflict, "not_ready"
	case errors.Is(err, ad.ErrIntervalNotElapsed):
		status, code = http.StatusConflict, "interval_not_elapsed"
	case errors.Is(err, ad.ErrPresentationFailed):
		status, code = http.StatusBadGateway, "presentation_failed"
	case errors.Is(err, service.ErrNoOutcome):
		status, code = http.StatusGatewayTimeout, "no_outcome"
	}

	c.JSON(status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: err.Error(),
	})
}
