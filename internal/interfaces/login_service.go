package interfaces

import (
	"context"

	"github.com/oxbowlabs/vantage/internal/models"
)

// LoginService drives QR login attempts and reports outcomes via events
type LoginService interface {
	// StartLogin begins a login attempt and returns a synchronous
	// acknowledgment; all further outcomes arrive via published events
	StartLogin(ctx context.Context, accountID, sessionID string, proxyCfg *models.ProxyConfig) (*models.LoginAck, error)

	// CancelLogin force-stops the account's login attempt from any state.
	// Safe to call at any time, idempotent, and guarantees the poll loop
	// has stopped before returning.
	CancelLogin(accountID string)

	// ActiveSessions returns the login sessions currently in flight
	ActiveSessions() []*models.LoginSession
}

// LoginMethodDetector locates and captures the login challenge on a page.
// One implementation per target site, injected into the shared orchestrator.
type LoginMethodDetector interface {
	// Site names the target site profile
	Site() string

	// DetectChallenge navigates to the login origin, waits for the login
	// overlay to settle, locates the QR element, and captures it
	DetectChallenge(ctx context.Context, page *models.Page) (*models.LoginChallenge, error)

	// RefreshChallenge reloads the page and re-extracts a fresh challenge
	RefreshChallenge(ctx context.Context, page *models.Page) (*models.LoginChallenge, error)
}

// LoginCompletionChecker evaluates whether the login has completed using
// site-specific signals (URL change, logged-in DOM marker, session cookie).
// Any single positive signal is sufficient.
type LoginCompletionChecker interface {
	CheckCompletion(ctx context.Context, page *models.Page) (bool, error)
}
