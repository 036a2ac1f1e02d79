package interfaces

import (
	"context"

	"github.com/oxbowlabs/vantage/internal/models"
)

// ProxyGate mediates network egress: bounded reachability probes with a
// TTL cache, and 3-tier fallback resolution (primary -> fallback -> direct)
type ProxyGate interface {
	// CheckHealth returns the cached verdict when younger than the TTL,
	// otherwise probes the proxy with a throwaway browser context
	CheckHealth(ctx context.Context, server string) *models.ProxyHealthRecord

	// Resolve returns the usable cascade candidates in tier order. Health
	// checks are optimistic; the caller must wrap each candidate's actual
	// use in its own try/fallback. Returns ErrAllProxyTiersExhausted when
	// no tier is available.
	Resolve(ctx context.Context, cfg *models.ProxyConfig) ([]models.ProxyCandidate, error)

	// PurgeExpired drops cache entries older than the TTL, returning the
	// number removed
	PurgeExpired() int
}
