package models

import "time"

// ProxyTier identifies one rung of the egress fallback cascade
type ProxyTier string

const (
	ProxyTierPrimary  ProxyTier = "primary"
	ProxyTierFallback ProxyTier = "fallback"
	ProxyTierDirect   ProxyTier = "direct"
)

// ProxyConfig is the per-account proxy request supplied by the caller.
// An empty Server means the account has no dedicated proxy and may go
// straight to direct egress (subject to AllowDirectConnection).
type ProxyConfig struct {
	Server         string `json:"server"`
	FallbackServer string `json:"fallback_server"`
	// AllowDirectConnection overrides the gate-wide setting when non-nil
	AllowDirectConnection *bool `json:"allow_direct_connection,omitempty"`
}

// ProxyHealthRecord is a cached reachability verdict for one proxy server.
// Records are shared across accounts (keyed by server address) and tolerate
// staleness up to the gate's TTL.
type ProxyHealthRecord struct {
	Server         string    `json:"server"`
	Healthy        bool      `json:"healthy"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	LastCheckedAt  time.Time `json:"last_checked_at"`
	Error          string    `json:"error,omitempty"`
}

// ProxyCandidate is one usable rung of the cascade, in resolution order.
// Server is empty for the direct tier.
type ProxyCandidate struct {
	Tier   ProxyTier `json:"tier"`
	Server string    `json:"server,omitempty"`
}

// NetworkPath records which candidate a session actually launched with
type NetworkPath struct {
	Tier   ProxyTier `json:"tier"`
	Server string    `json:"server,omitempty"`
}
