package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
)

// StatusHandler reports service health and registry statistics
type StatusHandler struct {
	config    *common.Config
	sessions  interfaces.SessionManager
	login     interfaces.LoginService
	logger    arbor.ILogger
	startTime time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(config *common.Config, sessions interfaces.SessionManager, login interfaces.LoginService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		config:    config,
		sessions:  sessions,
		login:     login,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       common.GetVersion(),
		"environment":   h.config.Environment,
		"uptime":        time.Since(h.startTime).Round(time.Second).String(),
		"sessions":      h.sessions.Stats(),
		"active_logins": len(h.login.ActiveSessions()),
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}
