package server

import (
	"net/http"

	"github.com/oxbowlabs/vantage/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (login and session lifecycle events)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Login orchestration
	mux.HandleFunc("/api/login/start", s.app.LoginHandler.StartLoginHandler)    // POST - start a QR login attempt
	mux.HandleFunc("/api/login/cancel", s.app.LoginHandler.CancelLoginHandler)  // POST - cancel an in-flight attempt
	mux.HandleFunc("/api/login/active", s.app.LoginHandler.ActiveLoginsHandler) // GET - attempts currently in flight

	// API routes - Session registry
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.ListSessionsHandler)   // GET - registry statistics
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.SessionRoutesHandler) // GET /{account}, POST /{account}/close

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "Not found: "+r.URL.Path)
}
