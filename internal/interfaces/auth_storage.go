package interfaces

import (
	"context"

	"github.com/oxbowlabs/vantage/internal/models"
)

// AuthStorage persists captured session credentials (cookie snapshots)
type AuthStorage interface {
	StoreCredentials(ctx context.Context, credentials *models.SessionCredentials) error
	GetCredentials(ctx context.Context, accountID string) (*models.SessionCredentials, error)
	DeleteCredentials(ctx context.Context, accountID string) error
	ListCredentials(ctx context.Context) ([]*models.SessionCredentials, error)
}

// StorageManager provides access to all storage implementations
type StorageManager interface {
	AuthStorage() AuthStorage
	Close() error
}
