package login

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

const loginPurpose = "login"

// attempt is one in-flight login: its state record, the context that stops
// its poll loop, and a done channel closed when the loop has fully exited
type attempt struct {
	session *models.LoginSession
	cancel  context.CancelFunc
	done    chan struct{}
}

// Service is the login orchestrator. StartLogin acknowledges synchronously
// and drives the attempt on a background poll loop; every outcome reaches
// the caller as a published event. One attempt per account at a time.
type Service struct {
	cfg      common.LoginConfig
	logger   arbor.ILogger
	sessions interfaces.SessionManager
	detector interfaces.LoginMethodDetector
	checker  interfaces.LoginCompletionChecker
	events   interfaces.EventService
	auth     interfaces.AuthStorage

	mu     sync.Mutex
	active map[string]*attempt
}

// NewService creates the login orchestrator
func NewService(cfg *common.Config, sessions interfaces.SessionManager, detector interfaces.LoginMethodDetector, checker interfaces.LoginCompletionChecker, events interfaces.EventService, auth interfaces.AuthStorage, logger arbor.ILogger) *Service {
	return &Service{
		cfg:      cfg.Login,
		logger:   logger,
		sessions: sessions,
		detector: detector,
		checker:  checker,
		events:   events,
		auth:     auth,
		active:   make(map[string]*attempt),
	}
}

// StartLogin begins a login attempt for the account. A previous in-flight
// attempt for the same account is cancelled first, so the newest request
// always wins.
func (s *Service) StartLogin(ctx context.Context, accountID, sessionID string, proxyCfg *models.ProxyConfig) (*models.LoginAck, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}
	if sessionID == "" {
		sessionID = common.NewLoginSessionID()
	}

	s.CancelLogin(accountID)

	session := &models.LoginSession{
		AccountID:      accountID,
		SessionID:      sessionID,
		Status:         models.LoginStatusPending,
		StartedAt:      time.Now().UTC(),
		MaxQRRefreshes: s.cfg.MaxQRRefreshes,
	}

	// The attempt outlives the HTTP request that started it
	attemptCtx, cancel := context.WithCancel(context.Background())
	att := &attempt{
		session: session,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.active[accountID] = att
	s.mu.Unlock()

	s.logger.Info().
		Str("account_id", accountID).
		Str("session_id", sessionID).
		Msg("Login attempt started")

	common.SafeGo(s.logger, "login-"+accountID, func() {
		s.run(attemptCtx, att, proxyCfg)
	})

	// The attempt is committed to the scanning path; the ack reports it so
	// callers can key UI state off a single documented value
	return &models.LoginAck{
		Success:   true,
		SessionID: sessionID,
		Status:    models.LoginStatusScanning,
	}, nil
}

// CancelLogin force-stops the account's attempt from any state. Idempotent;
// returns only after the poll loop has fully stopped.
func (s *Service) CancelLogin(accountID string) {
	s.mu.Lock()
	att, ok := s.active[accountID]
	s.mu.Unlock()

	if !ok {
		return
	}

	att.cancel()
	<-att.done
}

// ActiveSessions returns the login sessions currently in flight
func (s *Service) ActiveSessions() []*models.LoginSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*models.LoginSession, 0, len(s.active))
	for _, att := range s.active {
		sessions = append(sessions, att.session)
	}
	return sessions
}

// run drives one attempt to a terminal status
func (s *Service) run(ctx context.Context, att *attempt, proxyCfg *models.ProxyConfig) {
	session := att.session

	defer func() {
		// The page is closed but the browser context stays alive: on
		// success it carries the authenticated session, on failure it
		// keeps the profile warm for the next attempt
		s.sessions.ClosePage(session.AccountID, loginPurpose)

		s.mu.Lock()
		if current, ok := s.active[session.AccountID]; ok && current == att {
			delete(s.active, session.AccountID)
		}
		s.mu.Unlock()

		close(att.done)
	}()

	page, err := s.sessions.GetPage(ctx, session.AccountID, interfaces.PageOptions{
		Purpose: loginPurpose,
		Proxy:   proxyCfg,
	})
	if err != nil {
		s.fail(ctx, session, classifyError(err), err)
		return
	}

	if path := s.sessions.NetworkPath(session.AccountID); path != nil {
		session.ProxyUsed = path.Server
		session.FallbackTier = path.Tier
	}

	challenge, err := s.detector.DetectChallenge(ctx, page)
	if err != nil {
		s.fail(ctx, session, classifyError(err), err)
		return
	}

	session.Status = models.LoginStatusScanning
	session.QRGeneratedAt = challenge.GeneratedAt

	s.publish(ctx, interfaces.EventLoginQRReady, &models.LoginEvent{
		AccountID:     session.AccountID,
		SessionID:     session.SessionID,
		QRImageBase64: challenge.ImageBase64,
		Timestamp:     time.Now().UTC(),
	})

	s.poll(ctx, att, page)
}

// poll is the attempt's heartbeat. Checks run in a fixed order on every
// tick: overall timeout, then completion, then QR expiry. Timeout first
// means a login that races the deadline loses.
func (s *Service) poll(ctx context.Context, att *attempt, page *models.Page) {
	session := att.session
	deadline := session.StartedAt.Add(s.cfg.LoginTimeout)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.fail(ctx, session, models.ErrTypeLoginCancelled, fmt.Errorf("login cancelled"))
			return

		case <-ticker.C:
			now := time.Now().UTC()

			if now.After(deadline) {
				s.fail(ctx, session, models.ErrTypeLoginTimeout,
					fmt.Errorf("login not completed within %s", s.cfg.LoginTimeout))
				return
			}

			completed, err := s.checker.CheckCompletion(ctx, page)
			if err != nil {
				s.fail(ctx, session, classifyError(err), err)
				return
			}
			if completed {
				s.succeed(ctx, session)
				return
			}

			if now.Sub(session.QRGeneratedAt) >= s.cfg.QRLifetime {
				if !s.refresh(ctx, att, page, deadline) {
					return
				}
			}
		}
	}
}

// refresh replaces an expired QR, bounded by the refresh budget. Returns
// false when the attempt reached a terminal status.
func (s *Service) refresh(ctx context.Context, att *attempt, page *models.Page, deadline time.Time) bool {
	session := att.session

	if session.QRRefreshCount >= session.MaxQRRefreshes {
		s.fail(ctx, session, models.ErrTypeQRRefreshLimitExceeded,
			fmt.Errorf("qr refresh limit of %d exceeded", session.MaxQRRefreshes))
		return false
	}

	session.Status = models.LoginStatusExpired

	s.logger.Info().
		Str("account_id", session.AccountID).
		Int("refresh_count", session.QRRefreshCount+1).
		Int("max_refreshes", session.MaxQRRefreshes).
		Msg("QR expired, refreshing")

	challenge, err := s.detector.RefreshChallenge(ctx, page)

	// A slow refresh can complete after the overall deadline has passed;
	// the attempt is then a timeout and the fresh QR is suppressed
	if time.Now().UTC().After(deadline) {
		s.fail(ctx, session, models.ErrTypeLoginTimeout,
			fmt.Errorf("login not completed within %s", s.cfg.LoginTimeout))
		return false
	}

	if err != nil {
		s.fail(ctx, session, classifyError(err), err)
		return false
	}

	session.QRRefreshCount++
	session.QRGeneratedAt = challenge.GeneratedAt
	session.Status = models.LoginStatusScanning

	s.publish(ctx, interfaces.EventLoginQRRefreshed, &models.LoginEvent{
		AccountID:     session.AccountID,
		SessionID:     session.SessionID,
		QRImageBase64: challenge.ImageBase64,
		RefreshCount:  session.QRRefreshCount,
		Timestamp:     time.Now().UTC(),
	})

	return true
}

// succeed snapshots credentials and publishes the success event
func (s *Service) succeed(ctx context.Context, session *models.LoginSession) {
	session.Status = models.LoginStatusSuccess

	validUntil := time.Now().UTC().Add(time.Duration(s.cfg.Site.CookieValidDays) * 24 * time.Hour).Unix()

	cookies, err := s.sessions.SnapshotCookies(ctx, session.AccountID)
	if err != nil {
		// Success stands; the live browser still holds the session even
		// when the snapshot could not be captured
		s.logger.Warn().
			Str("account_id", session.AccountID).
			Err(err).
			Msg("Cookie snapshot failed after successful login")
	} else if s.auth != nil {
		s.storeCredentials(ctx, session, cookies, validUntil)
	}

	s.logger.Info().
		Str("account_id", session.AccountID).
		Str("session_id", session.SessionID).
		Msg("Login succeeded")

	s.publish(ctx, interfaces.EventLoginSucceeded, &models.LoginEvent{
		AccountID:         session.AccountID,
		SessionID:         session.SessionID,
		CookiesValidUntil: validUntil,
		Timestamp:         time.Now().UTC(),
	})
}

func (s *Service) storeCredentials(ctx context.Context, session *models.LoginSession, cookies []models.Cookie, validUntil int64) {
	serialized, err := json.Marshal(cookies)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to serialize cookie snapshot")
		return
	}

	now := time.Now().UTC().Unix()
	credentials := &models.SessionCredentials{
		ID:                session.AccountID,
		AccountID:         session.AccountID,
		SiteName:          s.cfg.Site.Name,
		Cookies:           serialized,
		CookiesValidUntil: validUntil,
		ProxyUsed:         session.ProxyUsed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.auth.StoreCredentials(ctx, credentials); err != nil {
		s.logger.Warn().
			Str("account_id", session.AccountID).
			Err(err).
			Msg("Failed to store session credentials")
	}
}

// fail marks the attempt failed and publishes the failure event
func (s *Service) fail(ctx context.Context, session *models.LoginSession, errorType string, err error) {
	session.Status = models.LoginStatusFailed

	s.logger.Warn().
		Str("account_id", session.AccountID).
		Str("session_id", session.SessionID).
		Str("error_type", errorType).
		Err(err).
		Msg("Login failed")

	s.publish(ctx, interfaces.EventLoginFailed, &models.LoginEvent{
		AccountID:    session.AccountID,
		SessionID:    session.SessionID,
		ErrorType:    errorType,
		ErrorMessage: err.Error(),
		Timestamp:    time.Now().UTC(),
	})
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload *models.LoginEvent) {
	if s.events == nil {
		return
	}
	// Publish on a background context so terminal events survive the
	// attempt context being cancelled
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish login event")
	}
}
