package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

// AuthStorage implements the AuthStorage interface for Badger. Records are
// keyed by account ID, so each account holds exactly one credential set and
// a fresh login overwrites the previous snapshot.
type AuthStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuthStorage creates a new AuthStorage instance
func NewAuthStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuthStorage {
	return &AuthStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AuthStorage) StoreCredentials(ctx context.Context, credentials *models.SessionCredentials) error {
	if credentials.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	if credentials.ID == "" {
		credentials.ID = credentials.AccountID
	}

	now := time.Now().Unix()
	if credentials.CreatedAt == 0 {
		credentials.CreatedAt = now
	}
	credentials.UpdatedAt = now

	if err := s.db.Store().Upsert(credentials.ID, credentials); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	s.logger.Debug().
		Str("account_id", credentials.AccountID).
		Str("site", credentials.SiteName).
		Msg("Session credentials stored")

	return nil
}

func (s *AuthStorage) GetCredentials(ctx context.Context, accountID string) (*models.SessionCredentials, error) {
	var creds models.SessionCredentials
	if err := s.db.Store().Get(accountID, &creds); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("credentials not found for account: %s", accountID)
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &creds, nil
}

func (s *AuthStorage) DeleteCredentials(ctx context.Context, accountID string) error {
	if err := s.db.Store().Delete(accountID, &models.SessionCredentials{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func (s *AuthStorage) ListCredentials(ctx context.Context) ([]*models.SessionCredentials, error) {
	var creds []models.SessionCredentials
	if err := s.db.Store().Find(&creds, nil); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	result := make([]*models.SessionCredentials, len(creds))
	for i := range creds {
		result[i] = &creds[i]
	}
	return result, nil
}
