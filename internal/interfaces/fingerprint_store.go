package interfaces

import "github.com/oxbowlabs/vantage/internal/models"

// FingerprintStore derives and persists stable per-account device fingerprints
type FingerprintStore interface {
	// GetOrCreate returns the persisted profile for the account, deriving
	// and persisting a new one deterministically on first use
	GetOrCreate(accountID string) (*models.FingerprintProfile, error)
}
