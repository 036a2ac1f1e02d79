package interfaces

import (
	"context"

	"github.com/oxbowlabs/vantage/internal/models"
)

// PageOptions controls page acquisition from the session manager
type PageOptions struct {
	// Purpose distinguishes concurrent pages within one account's context
	// (e.g. "login" vs "scrape") so they are pooled independently
	Purpose string

	// ReuseExisting returns the cached page for (account, purpose) when it
	// is still alive instead of opening a new tab
	ReuseExisting bool

	// Proxy carries the caller's proxy preference, consulted only when a
	// new browser context must be created for the account
	Proxy *models.ProxyConfig
}

// SessionManager owns one isolated, persistent browser profile per account:
// creation, validation, crash recovery, and the per-account page pool.
// Callers receive borrowed page references, never ownership.
type SessionManager interface {
	// GetPage returns a live page for the account, transparently
	// recreating the underlying browser context when it has crashed,
	// disconnected, or been closed
	GetPage(ctx context.Context, accountID string, opts PageOptions) (*models.Page, error)

	// IsContextValid reports whether the account's browser context is
	// currently live without creating one
	IsContextValid(accountID string) bool

	// NetworkPath returns the egress path the account's context launched
	// with, or nil when no context exists
	NetworkPath(accountID string) *models.NetworkPath

	// SnapshotCookies captures the context's cookies and writes the
	// per-account storage state file
	SnapshotCookies(ctx context.Context, accountID string) ([]models.Cookie, error)

	// ClosePage closes the pooled page for (account, purpose), keeping the
	// context alive
	ClosePage(accountID, purpose string)

	// CloseContext tears down the account's browser, optionally
	// snapshotting cookies first; in-memory references are always removed
	CloseContext(ctx context.Context, accountID string, persistState bool) error

	// Shutdown closes every account context
	Shutdown(ctx context.Context) error

	// Stats returns registry statistics for the status surface
	Stats() map[string]interface{}
}
