package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/handlers"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/services/events"
	"github.com/oxbowlabs/vantage/internal/services/fingerprint"
	"github.com/oxbowlabs/vantage/internal/services/login"
	"github.com/oxbowlabs/vantage/internal/services/proxygate"
	"github.com/oxbowlabs/vantage/internal/services/session"
	"github.com/oxbowlabs/vantage/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager   interfaces.StorageManager
	EventService     interfaces.EventService
	FingerprintStore interfaces.FingerprintStore
	ProxyGate        interfaces.ProxyGate
	SessionManager   interfaces.SessionManager
	LoginService     interfaces.LoginService

	LoginHandler   *handlers.LoginHandler
	SessionHandler *handlers.SessionHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler

	janitor *cron.Cron
}

// New creates the application with all dependencies wired in order:
// storage, events, fingerprints, proxy gate, sessions, login, handlers
func New(cfg *common.Config) (*App, error) {
	logger := common.GetLogger()

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventService := events.NewService(logger)
	fingerprintStore := fingerprint.NewStore(cfg, logger)
	proxyGate := proxygate.NewService(cfg, logger)
	sessionManager := session.NewManager(cfg, fingerprintStore, proxyGate, eventService, logger)

	detector := login.NewSiteDetector(cfg.Login, logger)
	checker := login.NewSiteChecker(cfg.Login, logger)
	loginService := login.NewService(cfg, sessionManager, detector, checker, eventService, storageManager.AuthStorage(), logger)

	a := &App{
		Config:           cfg,
		Logger:           logger,
		StorageManager:   storageManager,
		EventService:     eventService,
		FingerprintStore: fingerprintStore,
		ProxyGate:        proxyGate,
		SessionManager:   sessionManager,
		LoginService:     loginService,
		LoginHandler:     handlers.NewLoginHandler(loginService, logger),
		SessionHandler:   handlers.NewSessionHandler(sessionManager, storageManager.AuthStorage(), logger),
		StatusHandler:    handlers.NewStatusHandler(cfg, sessionManager, loginService, logger),
		WSHandler:        handlers.NewWebSocketHandler(eventService, logger),
	}

	if err := a.startJanitor(); err != nil {
		a.Logger.Warn().Err(err).Msg("Janitor disabled: invalid schedule")
	}

	logger.Info().
		Str("site", cfg.Login.Site.Name).
		Str("db_path", cfg.Storage.Badger.Path).
		Msg("Application initialized")

	return a, nil
}

// startJanitor schedules the background maintenance sweep: expired proxy
// verdicts are dropped and login attempts that should long have timed out
// (for example because the process was descheduled) are cancelled
func (a *App) startJanitor() error {
	if a.Config.Janitor.Schedule == "" {
		return nil
	}

	a.janitor = cron.New()
	_, err := a.janitor.AddFunc(a.Config.Janitor.Schedule, func() {
		purged := a.ProxyGate.PurgeExpired()

		stale := 0
		grace := a.Config.Login.LoginTimeout * 2
		for _, loginSession := range a.LoginService.ActiveSessions() {
			if time.Since(loginSession.StartedAt) > grace {
				a.LoginService.CancelLogin(loginSession.AccountID)
				stale++
			}
		}

		if purged > 0 || stale > 0 {
			a.Logger.Info().
				Int("proxy_verdicts_purged", purged).
				Int("stale_logins_cancelled", stale).
				Msg("Janitor sweep completed")
		}
	})
	if err != nil {
		a.janitor = nil
		return err
	}

	a.janitor.Start()
	a.Logger.Debug().Str("schedule", a.Config.Janitor.Schedule).Msg("Janitor started")
	return nil
}

// Close shuts down all components in reverse dependency order
func (a *App) Close() error {
	if a.janitor != nil {
		a.janitor.Stop()
	}

	// Stop in-flight logins before tearing down their browsers
	for _, loginSession := range a.LoginService.ActiveSessions() {
		a.LoginService.CancelLogin(loginSession.AccountID)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.SessionManager.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn().Err(err).Msg("Session manager shutdown reported errors")
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close event service")
	}

	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
