package fingerprint

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
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

// Store derives and persists per-account fingerprint profiles. A profile is
// a pure function of the account ID: the ID seeds a deterministic generator
// that samples each field from a fixed catalogue. Once persisted, the file
// is the source of truth and is never regenerated.
type Store struct {
	dir    string
	cfg    common.FingerprintConfig
	logger arbor.ILogger

	mu    sync.Mutex
	cache map[string]*models.FingerprintProfile
}

// NewStore creates a fingerprint store rooted at the configured directory
func NewStore(cfg *common.Config, logger arbor.ILogger) interfaces.FingerprintStore {
	return &Store{
		dir:    cfg.Storage.FingerprintsDir,
		cfg:    cfg.Fingerprint,
		logger: logger,
		cache:  make(map[string]*models.FingerprintProfile),
	}
}

// GetOrCreate returns the account's profile, loading a persisted one when
// present and deriving (then persisting) a new one otherwise. Persistence
// failure is non-fatal: the derived profile is still returned and remains
// stable for this process because of the in-memory cache.
func (s *Store) GetOrCreate(accountID string) (*models.FingerprintProfile, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.cache[accountID]; ok {
		return profile, nil
	}

	path := s.profilePath(accountID)
	if data, err := os.ReadFile(path); err == nil {
		var profile models.FingerprintProfile
		if err := json.Unmarshal(data, &profile); err == nil {
			s.cache[accountID] = &profile
			return &profile, nil
		}
		// Corrupted file: re-derive deterministically, which reproduces the
		// original values for an untouched account
		s.logger.Warn().
			Str("account_id", accountID).
			Str("path", path).
			Msg("Fingerprint profile file is corrupted, re-deriving")
	}

	profile := s.derive(accountID)

	if err := s.persist(path, profile); err != nil {
		s.logger.Warn().
			Err(err).
			Str("account_id", accountID).
			Msg("Failed to persist fingerprint profile, using in-memory profile for this run")
	}

	s.cache[accountID] = profile

	s.logger.Debug().
		Str("account_id", accountID).
		Str("user_agent", profile.UserAgent).
		Str("timezone", profile.Timezone).
		Msg("Fingerprint profile created")

	return profile, nil
}

// derive samples every profile field from the catalogues using a generator
// seeded by the account ID
func (s *Store) derive(accountID string) *models.FingerprintProfile {
	rng := rand.New(rand.NewSource(int64(seed(accountID))))

	major := chromeMajorVersions[rng.Intn(len(chromeMajorVersions))]
	version := fmt.Sprintf("%d.0.%d.%d", major, 6300+rng.Intn(400), rng.Intn(200))
	ua := fmt.Sprintf(userAgentTemplates[rng.Intn(len(userAgentTemplates))], version)

	viewport := viewportPresets[rng.Intn(len(viewportPresets))]
	screen := screenPresets[rng.Intn(len(screenPresets))]
	gpu := gpuPresets[rng.Intn(len(gpuPresets))]
	locale := localePresets[rng.Intn(len(localePresets))]
	fonts := fontSets[rng.Intn(len(fontSets))]

	profile := &models.FingerprintProfile{
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
		UserAgent: ua,
		Viewport: models.Viewport{
			Width:  viewport.Width,
			Height: viewport.Height,
		},
		WebGL: models.WebGL{
			Vendor:   gpu.Vendor,
			Renderer: gpu.Renderer,
		},
		CanvasNoise: 0.0001 + rng.Float64()*0.0009,
		AudioNoise:  0.00001 + rng.Float64()*0.00009,
		Hardware: models.Hardware{
			Cores:    corePresets[rng.Intn(len(corePresets))],
			MemoryGB: memoryPresets[rng.Intn(len(memoryPresets))],
		},
		Screen: models.Screen{
			Width:      screen.Width,
			Height:     screen.Height,
			ColorDepth: screen.ColorDepth,
			PixelRatio: screen.PixelRatio,
		},
		Locale:      locale.Locale,
		Timezone:    locale.Timezone,
		Fonts:       append([]string(nil), fonts...),
		PluginCount: pluginCounts[rng.Intn(len(pluginCounts))],
	}

	if s.cfg.Locale != "" {
		profile.Locale = s.cfg.Locale
	}
	if s.cfg.Timezone != "" {
		profile.Timezone = s.cfg.Timezone
	}

	return profile
}

func (s *Store) persist(path string, profile *models.FingerprintProfile) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create fingerprints directory: %w", err)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint profile: %w", err)
	}

	return nil
}

func (s *Store) profilePath(accountID string) string {
	return filepath.Join(s.dir, sanitizeFilename(accountID)+".json")
}

// seed derives a 32-bit seed from the account ID (FNV-1a)
func seed(accountID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return h.Sum32()
}

// sanitizeFilename maps an account ID to a safe file name
func sanitizeFilename(accountID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, accountID)
}
