package handlers

import (
	"errors"
	"net/http"

	"stovelink/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK     = "ok"
	statusQueued = "queued"

	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondQueued acknowledges a command that was handed to the worker. The
// command is applied on the next poll cycle, so 202 rather than 200.
func (h *Handler) respondQueued(c *gin.Context, extra gin.H) {
	resp := gin.H{"status": statusQueued}
	for k, v := range extra {
		resp[k] = v
	}
	c.JSON(http.StatusAccepted, resp)
}

// respondCommandError maps service errors: no session is a conflict, any
// other rejection is a bad request.
func (h *Handler) respondCommandError(c *gin.Context, logKey string, err error) {
	if errors.Is(err, service.ErrNotConnected) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, "err", err)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// Request DTO for temperature adjustments.
type deltaRequest struct {
	Delta float64 `json:"delta,omitempty"` // temperature step in °C, defaults to 0.1
}

// Request DTO for the power switch.
type powerRequest struct {
	On *bool `json:"on" binding:"required"`
}

// Request DTO for an explicit operative mode change.
type setModeRequest struct {
	Mode *int `json:"mode" binding:"required"` // 0=power, 1=temperature, 2=emergency
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get stove state
// @Description  Connection status plus the latest snapshot, when a session is active.
// @Tags         stove
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/stove/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "stove_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Switch stove power
// @Description  Queues a power on/off command. It is applied on the next poll cycle, guarded by the last observed stove state.
// @Tags         stove
// @Accept       json
// @Produce      json
// @Param        body  body   powerRequest  true  "Power payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/stove/power [post]
// @Security     BearerAuth
func (h *Handler) setPower(c *gin.Context) {
	var req powerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Stove.SetPower(c.Request.Context(), *req.On); err != nil {
		h.respondCommandError(c, "stove_set_power_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{"on": *req.On})
}

// @Summary      Increase temperature setpoint
// @Tags         stove
// @Accept       json
// @Produce      json
// @Param        body  body   deltaRequest  false  "Step payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/stove/temperature/increase [post]
// @Security     BearerAuth
func (h *Handler) increaseTemperature(c *gin.Context) {
	delta, ok := h.bindDelta(c)
	if !ok {
		return
	}
	if err := h.services.Stove.IncreaseTemperature(c.Request.Context(), delta); err != nil {
		h.respondCommandError(c, "stove_increase_temperature_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{"delta": delta})
}

// @Summary      Decrease temperature setpoint
// @Tags         stove
// @Accept       json
// @Produce      json
// @Param        body  body   deltaRequest  false  "Step payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/stove/temperature/decrease [post]
// @Security     BearerAuth
func (h *Handler) decreaseTemperature(c *gin.Context) {
	delta, ok := h.bindDelta(c)
	if !ok {
		return
	}
	if err := h.services.Stove.DecreaseTemperature(c.Request.Context(), delta); err != nil {
		h.respondCommandError(c, "stove_decrease_temperature_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{"delta": delta})
}

// @Summary      Increase power level
// @Tags         stove
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/stove/power/increase [post]
// @Security     BearerAuth
func (h *Handler) increasePower(c *gin.Context) {
	if err := h.services.Stove.IncreasePower(c.Request.Context()); err != nil {
		h.respondCommandError(c, "stove_increase_power_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{})
}

// @Summary      Decrease power level
// @Tags         stove
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/stove/power/decrease [post]
// @Security     BearerAuth
func (h *Handler) decreasePower(c *gin.Context) {
	if err := h.services.Stove.DecreasePower(c.Request.Context()); err != nil {
		h.respondCommandError(c, "stove_decrease_power_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{})
}

// @Summary      Toggle operative mode
// @Description  Flips between power and temperature mode. Emergency mode is not reachable here.
// @Tags         stove
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/stove/mode/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleMode(c *gin.Context) {
	if err := h.services.Stove.ToggleMode(c.Request.Context()); err != nil {
		h.respondCommandError(c, "stove_toggle_mode_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{})
}

// @Summary      Set operative mode
// @Description  Explicit mode change; the only path that can reach emergency mode (2).
// @Tags         stove
// @Accept       json
// @Produce      json
// @Param        body  body   setModeRequest  true  "Mode payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/stove/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Stove.SetOperativeMode(c.Request.Context(), *req.Mode); err != nil {
		h.respondCommandError(c, "stove_set_mode_rejected", err)
		return
	}
	h.respondQueued(c, gin.H{"mode": *req.Mode})
}

// bindDelta reads an optional {"delta":...} body. An empty body means the
// default step.
func (h *Handler) bindDelta(c *gin.Context) (float64, bool) {
	var req deltaRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return 0, false
		}
	}
	if req.Delta == 0 {
		req.Delta = 0.1
	}
	return req.Delta, true
}
