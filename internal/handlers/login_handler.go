package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

// LoginHandler exposes the login orchestrator over HTTP. Start returns a
// synchronous acknowledgment; outcomes stream over the websocket.
type LoginHandler struct {
	login  interfaces.LoginService
	logger arbor.ILogger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(login interfaces.LoginService, logger arbor.ILogger) *LoginHandler {
	return &LoginHandler{login: login, logger: logger}
}

type startLoginRequest struct {
	AccountID string              `json:"account_id"`
	SessionID string              `json:"session_id,omitempty"`
	Proxy     *models.ProxyConfig `json:"proxy,omitempty"`
}

type cancelLoginRequest struct {
	AccountID string `json:"account_id"`
}

// StartLoginHandler handles POST /api/login/start
func (h *LoginHandler) StartLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req startLoginRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	ack, err := h.login.StartLogin(r.Context(), req.AccountID, req.SessionID, req.Proxy)
	if err != nil {
		h.logger.Warn().Str("account_id", req.AccountID).Err(err).Msg("Failed to start login")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, ack)
}

// CancelLoginHandler handles POST /api/login/cancel
func (h *LoginHandler) CancelLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req cancelLoginRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	h.login.CancelLogin(req.AccountID)
	WriteSuccess(w, "login cancelled")
}

// ActiveLoginsHandler handles GET /api/login/active
func (h *LoginHandler) ActiveLoginsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessions := h.login.ActiveSessions()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}
