package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/preference"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
)

// Messages of the fallback views
const (
	MsgForbidden = "You do not have permission to view this page"
	MsgNotFound  = "Page not found"
)

// SystemHandler handles health, theme and the fallback views
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	theme     *preference.ThemeService
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, theme *preference.ThemeService, notices *notice.Center) *SystemHandler {
	return &SystemHandler{
		BaseHandler: NewBaseHandler(notices),
		name:        name,
		version:     version,
		theme:       theme,
		startTime:   time.Now(),
	}
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Status    string `json:"status"`
}

// Health handles GET /healthz
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Status:    "ok",
	}))
}

// ThemeRequest is the body of PUT /theme
type ThemeRequest struct {
	Theme preference.Theme `json:"theme" binding:"required,oneof=light dark"`
}

// ThemeResponse carries the active theme
type ThemeResponse struct {
	Theme preference.Theme `json:"theme"`
}

// Theme handles GET /theme
func (h *SystemHandler) Theme(c *gin.Context) {
	h.Success(c, ThemeResponse{Theme: h.theme.Theme(c.Request.Context())})
}

// SetTheme handles PUT /theme
func (h *SystemHandler) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	if err := h.theme.SetTheme(c.Request.Context(), req.Theme); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ThemeResponse{Theme: req.Theme})
}

// Forbidden handles GET /forbidden
func (h *SystemHandler) Forbidden(c *gin.Context) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, MsgForbidden)
}

// NotFound answers every unknown route
func (h *SystemHandler) NotFound(c *gin.Context) {
	h.BaseHandler.NotFound(c, MsgNotFound)
}
