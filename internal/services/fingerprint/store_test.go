package fingerprint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Storage.FingerprintsDir = dir
	return NewStore(cfg, arbor.NewLogger()).(*Store), dir
}

func TestGetOrCreate_DeterministicPerAccount(t *testing.T) {
	storeA, _ := newTestStore(t)
	storeB, _ := newTestStore(t)

	first, err := storeA.GetOrCreate("acc_42")
	require.NoError(t, err)

	// A fresh store with a fresh directory must derive the identical profile
	second, err := storeB.GetOrCreate("acc_42")
	require.NoError(t, err)

	assert.Equal(t, first.UserAgent, second.UserAgent)
	assert.Equal(t, first.Viewport, second.Viewport)
	assert.Equal(t, first.WebGL, second.WebGL)
	assert.Equal(t, first.CanvasNoise, second.CanvasNoise)
	assert.Equal(t, first.AudioNoise, second.AudioNoise)
	assert.Equal(t, first.Hardware, second.Hardware)
	assert.Equal(t, first.Screen, second.Screen)
	assert.Equal(t, first.Locale, second.Locale)
	assert.Equal(t, first.Timezone, second.Timezone)
	assert.Equal(t, first.Fonts, second.Fonts)
	assert.Equal(t, first.PluginCount, second.PluginCount)
}

func TestGetOrCreate_DistinctAccountsDiffer(t *testing.T) {
	store, _ := newTestStore(t)

	a, err := store.GetOrCreate("acc_1")
	require.NoError(t, err)
	b, err := store.GetOrCreate("acc_2")
	require.NoError(t, err)

	// Not every field must differ, but the profiles as a whole should
	assert.False(t,
		a.UserAgent == b.UserAgent &&
			a.CanvasNoise == b.CanvasNoise &&
			a.AudioNoise == b.AudioNoise &&
			a.Viewport == b.Viewport,
		"distinct accounts produced identical profiles")
}

func TestGetOrCreate_PersistsAndReloads(t *testing.T) {
	store, dir := newTestStore(t)

	created, err := store.GetOrCreate("acc_7")
	require.NoError(t, err)

	path := filepath.Join(dir, "acc_7.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err, "profile file should exist after creation")

	var persisted models.FingerprintProfile
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, created.UserAgent, persisted.UserAgent)

	// Rewrite the file with a marker value; a fresh store must return the
	// persisted profile untouched rather than re-deriving
	persisted.UserAgent = "Mozilla/5.0 (marker)"
	edited, err := json.Marshal(&persisted)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, edited, 0644))

	cfg := common.NewDefaultConfig()
	cfg.Storage.FingerprintsDir = dir
	reloaded, err := NewStore(cfg, arbor.NewLogger()).GetOrCreate("acc_7")
	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0 (marker)", reloaded.UserAgent)
}

func TestGetOrCreate_CachedWithinProcess(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.GetOrCreate("acc_9")
	require.NoError(t, err)
	second, err := store.GetOrCreate("acc_9")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestGetOrCreate_UnwritableDirIsNonFatal(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.FingerprintsDir = filepath.Join(string(os.PathSeparator), "dev", "null", "nope")
	store := NewStore(cfg, arbor.NewLogger())

	profile, err := store.GetOrCreate("acc_11")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.NotEmpty(t, profile.UserAgent)

	// The in-memory profile stays stable for this process
	again, err := store.GetOrCreate("acc_11")
	require.NoError(t, err)
	assert.Equal(t, profile.UserAgent, again.UserAgent)
}

func TestGetOrCreate_EmptyAccountID(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetOrCreate("")
	assert.Error(t, err)
}

func TestGetOrCreate_ConfigOverrides(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.FingerprintsDir = t.TempDir()
	cfg.Fingerprint.Locale = "ja-JP"
	cfg.Fingerprint.Timezone = "Asia/Tokyo"
	store := NewStore(cfg, arbor.NewLogger())

	profile, err := store.GetOrCreate("acc_13")
	require.NoError(t, err)
	assert.Equal(t, "ja-JP", profile.Locale)
	assert.Equal(t, "Asia/Tokyo", profile.Timezone)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "acc_42", sanitizeFilename("acc_42"))
	assert.Equal(t, "user_example.com", sanitizeFilename("user@example.com"))
	assert.Equal(t, "a_b_c", sanitizeFilename("a/b\\c"))
}
