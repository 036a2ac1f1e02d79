package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

// ErrSessionUnrecoverable is returned when an account's browser context was
// found dead and the one recreation attempt also failed.
var ErrSessionUnrecoverable = errors.New("session unrecoverable")

// ErrLaunchFailed is returned when the browser could not be started on any
// resolved network path.
var ErrLaunchFailed = errors.New("browser launch failed on all network paths")

const defaultPurpose = "default"

// accountSession is one account's live browser: its context, network path,
// fingerprint binding, and open tabs
type accountSession struct {
	accountID   string
	browserCtx  context.Context
	cancel      context.CancelFunc
	networkPath models.NetworkPath
	fingerprint *models.FingerprintProfile
	profileDir  string
	createdAt   time.Time

	mu    sync.Mutex
	pages map[string]*models.Page
}

// Manager implements the session registry: at most one browser context per
// account, persistent profile directories, crash detection, and single-shot
// recreation. All context creation for one account is serialized by a
// per-account mutex so concurrent callers cannot race two browsers into
// existence for the same profile directory.
type Manager struct {
	cfg          *common.Config
	logger       arbor.ILogger
	fingerprints interfaces.FingerprintStore
	gate         interfaces.ProxyGate
	events       interfaces.EventService
	driver       *browserDriver

	mu       sync.Mutex
	sessions map[string]*accountSession
	locks    map[string]*sync.Mutex
}

// NewManager creates a session manager backed by chromedp
func NewManager(cfg *common.Config, fingerprints interfaces.FingerprintStore, gate interfaces.ProxyGate, events interfaces.EventService, logger arbor.ILogger) *Manager {
	return &Manager{
		cfg:          cfg,
		logger:       logger,
		fingerprints: fingerprints,
		gate:         gate,
		events:       events,
		driver:       newChromedpDriver(cfg.Browser),
		sessions:     make(map[string]*accountSession),
		locks:        make(map[string]*sync.Mutex),
	}
}

// GetPage returns a live page for the account. A dead browser context is
// purged and recreated exactly once; a second failure surfaces as
// ErrSessionUnrecoverable rather than looping.
func (m *Manager) GetPage(ctx context.Context, accountID string, opts interfaces.PageOptions) (*models.Page, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	purpose := opts.Purpose
	if purpose == "" {
		purpose = defaultPurpose
	}

	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	sess := m.lookup(accountID)

	recreating := false
	if sess != nil {
		if err := m.driver.probe(sess.browserCtx, m.cfg.Browser.LivenessTimeout); err != nil {
			m.logger.Warn().
				Str("account_id", accountID).
				Err(err).
				Msg("Browser context is dead, recreating")
			m.teardown(sess)
			sess = nil
			recreating = true
		}
	}

	if sess == nil {
		var err error
		sess, err = m.create(ctx, accountID, opts.Proxy)
		if err != nil {
			if recreating {
				return nil, fmt.Errorf("%w: %v", ErrSessionUnrecoverable, err)
			}
			return nil, err
		}

		if recreating {
			m.publish(ctx, interfaces.EventSessionRecreated, map[string]interface{}{
				"account_id": accountID,
				"tier":       string(sess.networkPath.Tier),
			})
		}
	}

	return m.acquirePage(sess, purpose, opts.ReuseExisting)
}

func (m *Manager) acquirePage(sess *accountSession, purpose string, reuse bool) (*models.Page, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if existing, ok := sess.pages[purpose]; ok {
		if reuse && existing.Alive() {
			return existing, nil
		}
		existing.Cancel()
		delete(sess.pages, purpose)
	}

	tabCtx, tabCancel, err := m.driver.openTab(sess.browserCtx, sess.fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to open page for account %s: %w", sess.accountID, err)
	}

	page := &models.Page{
		AccountID: sess.accountID,
		Purpose:   purpose,
		Ctx:       tabCtx,
		Cancel:    tabCancel,
		CreatedAt: time.Now().UTC(),
	}
	sess.pages[purpose] = page

	m.logger.Debug().
		Str("account_id", sess.accountID).
		Str("purpose", purpose).
		Msg("Page opened")

	return page, nil
}

// create resolves the network cascade and launches a browser on the first
// candidate that actually starts. Health checks are only optimistic, so
// each candidate's launch is wrapped in its own try/fallback.
func (m *Manager) create(ctx context.Context, accountID string, proxyCfg *models.ProxyConfig) (*accountSession, error) {
	fingerprint, err := m.fingerprints.GetOrCreate(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fingerprint for account %s: %w", accountID, err)
	}

	candidates, err := m.gate.Resolve(ctx, proxyCfg)
	if err != nil {
		return nil, err
	}

	profileDir := filepath.Join(m.cfg.Storage.ProfilesDir, dirName(accountID))
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	var lastErr error
	for _, candidate := range candidates {
		start := time.Now()
		browserCtx, cancel, err := m.driver.launch(ctx, launchSpec{
			AccountID:   accountID,
			ProfileDir:  profileDir,
			ProxyServer: candidate.Server,
			Fingerprint: fingerprint,
		})
		if err != nil {
			lastErr = err
			m.logger.Warn().
				Str("account_id", accountID).
				Str("tier", string(candidate.Tier)).
				Err(err).
				Msg("Browser launch failed on this tier, trying next")
			continue
		}

		sess := &accountSession{
			accountID:   accountID,
			browserCtx:  browserCtx,
			cancel:      cancel,
			networkPath: models.NetworkPath{Tier: candidate.Tier, Server: candidate.Server},
			fingerprint: fingerprint,
			profileDir:  profileDir,
			createdAt:   time.Now().UTC(),
			pages:       make(map[string]*models.Page),
		}

		m.mu.Lock()
		m.sessions[accountID] = sess
		m.mu.Unlock()

		m.watch(sess)

		m.logger.Info().
			Str("account_id", accountID).
			Str("tier", string(candidate.Tier)).
			Dur("launch_time", time.Since(start)).
			Msg("Browser context created")

		return sess, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, lastErr)
}

// watch purges the registry entry when the browser dies out from under us,
// so stale references never satisfy a lookup
func (m *Manager) watch(sess *accountSession) {
	common.SafeGo(m.logger, "session-watch-"+sess.accountID, func() {
		<-sess.browserCtx.Done()

		m.mu.Lock()
		if current, ok := m.sessions[sess.accountID]; ok && current == sess {
			delete(m.sessions, sess.accountID)
			m.mu.Unlock()
			m.logger.Warn().
				Str("account_id", sess.accountID).
				Msg("Browser context terminated, registry entry purged")
			return
		}
		m.mu.Unlock()
	})
}

// IsContextValid reports whether the account's browser context answers a
// cheap liveness probe
func (m *Manager) IsContextValid(accountID string) bool {
	sess := m.lookup(accountID)
	if sess == nil {
		return false
	}
	return m.driver.probe(sess.browserCtx, m.cfg.Browser.LivenessTimeout) == nil
}

// NetworkPath returns the egress path the account's context launched with
func (m *Manager) NetworkPath(accountID string) *models.NetworkPath {
	sess := m.lookup(accountID)
	if sess == nil {
		return nil
	}
	path := sess.networkPath
	return &path
}

// SnapshotCookies captures the context's cookies and writes the per-account
// storage state file alongside the profile directory
func (m *Manager) SnapshotCookies(ctx context.Context, accountID string) ([]models.Cookie, error) {
	sess := m.lookup(accountID)
	if sess == nil {
		return nil, fmt.Errorf("no active session for account %s", accountID)
	}

	cookies, err := m.driver.cookies(sess.browserCtx)
	if err != nil {
		return nil, err
	}

	state := map[string]interface{}{
		"account_id": accountID,
		"saved_at":   time.Now().UTC(),
		"user_agent": sess.fingerprint.UserAgent,
		"cookies":    cookies,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal storage state: %w", err)
	}

	statePath := filepath.Join(sess.profileDir, "storage_state.json")
	if err := os.WriteFile(statePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write storage state: %w", err)
	}

	m.logger.Debug().
		Str("account_id", accountID).
		Int("cookie_count", len(cookies)).
		Msg("Cookie snapshot written")

	return cookies, nil
}

// ClosePage closes the pooled page for (account, purpose), keeping the
// browser context alive
func (m *Manager) ClosePage(accountID, purpose string) {
	if purpose == "" {
		purpose = defaultPurpose
	}

	sess := m.lookup(accountID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if page, ok := sess.pages[purpose]; ok {
		page.Cancel()
		delete(sess.pages, purpose)
		m.logger.Debug().
			Str("account_id", accountID).
			Str("purpose", purpose).
			Msg("Page closed")
	}
}

// CloseContext tears down the account's browser. In-memory references are
// removed even when the state snapshot fails.
func (m *Manager) CloseContext(ctx context.Context, accountID string, persistState bool) error {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	sess := m.lookup(accountID)
	if sess == nil {
		return nil
	}

	if persistState {
		if _, err := m.SnapshotCookies(ctx, accountID); err != nil {
			m.logger.Warn().
				Str("account_id", accountID).
				Err(err).
				Msg("Cookie snapshot failed during context close")
		}
	}

	m.teardown(sess)

	m.publish(ctx, interfaces.EventSessionClosed, map[string]interface{}{
		"account_id": accountID,
	})

	m.logger.Info().
		Str("account_id", accountID).
		Bool("persisted", persistState).
		Msg("Browser context closed")

	return nil
}

// Shutdown closes every account context, persisting state for each
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	accounts := make([]string, 0, len(m.sessions))
	for accountID := range m.sessions {
		accounts = append(accounts, accountID)
	}
	m.mu.Unlock()

	for _, accountID := range accounts {
		if err := m.CloseContext(ctx, accountID, true); err != nil {
			m.logger.Warn().
				Str("account_id", accountID).
				Err(err).
				Msg("Failed to close context during shutdown")
		}
	}

	m.logger.Info().Int("contexts_closed", len(accounts)).Msg("Session manager shut down")
	return nil
}

// Stats returns registry statistics for the status surface
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make([]map[string]interface{}, 0, len(m.sessions))
	totalPages := 0
	for _, sess := range m.sessions {
		sess.mu.Lock()
		pageCount := len(sess.pages)
		sess.mu.Unlock()
		totalPages += pageCount

		accounts = append(accounts, map[string]interface{}{
			"account_id": sess.accountID,
			"tier":       string(sess.networkPath.Tier),
			"pages":      pageCount,
			"created_at": sess.createdAt,
		})
	}

	return map[string]interface{}{
		"active_contexts": len(m.sessions),
		"open_pages":      totalPages,
		"accounts":        accounts,
	}
}

// teardown cancels the session's pages and browser and removes it from the
// registry when it is still the current entry
func (m *Manager) teardown(sess *accountSession) {
	sess.mu.Lock()
	for purpose, page := range sess.pages {
		page.Cancel()
		delete(sess.pages, purpose)
	}
	sess.mu.Unlock()

	sess.cancel()

	m.mu.Lock()
	if current, ok := m.sessions[sess.accountID]; ok && current == sess {
		delete(m.sessions, sess.accountID)
	}
	m.mu.Unlock()
}

func (m *Manager) lookup(accountID string) *accountSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[accountID]
}

// accountLock returns the per-account creation mutex, creating it on first
// use. Locks are never removed; one mutex per account ever seen is cheap.
func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}

func (m *Manager) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		m.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

// dirName maps an account ID to a safe directory name
func dirName(accountID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, accountID)
}
