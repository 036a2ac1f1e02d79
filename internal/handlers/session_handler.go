package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/interfaces"
)

// SessionHandler exposes the session registry over HTTP
type SessionHandler struct {
	sessions interfaces.SessionManager
	auth     interfaces.AuthStorage
	logger   arbor.ILogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions interfaces.SessionManager, auth interfaces.AuthStorage, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, auth: auth, logger: logger}
}

// ListSessionsHandler handles GET /api/sessions
func (h *SessionHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.sessions.Stats())
}

// SessionRoutesHandler routes /api/sessions/{account} and
// /api/sessions/{account}/close
func (h *SessionHandler) SessionRoutesHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.getSession(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "close":
		h.closeSession(w, r, parts[0])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]interface{}{
		"account_id":    accountID,
		"context_valid": h.sessions.IsContextValid(accountID),
	}
	if path := h.sessions.NetworkPath(accountID); path != nil {
		response["network_path"] = path
	}

	if credentials, err := h.auth.GetCredentials(r.Context(), accountID); err == nil {
		response["credentials"] = map[string]interface{}{
			"site_name":           credentials.SiteName,
			"cookies_valid_until": credentials.CookiesValidUntil,
			"updated_at":          credentials.UpdatedAt,
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) closeSession(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	persist := r.URL.Query().Get("persist") != "false"

	if err := h.sessions.CloseContext(r.Context(), accountID, persist); err != nil {
		h.logger.Warn().Str("account_id", accountID).Err(err).Msg("Failed to close session context")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "session closed")
}
