package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

// fakeDriver backs the manager with plain cancellable contexts instead of
// real browsers
type fakeDriver struct {
	mu          sync.Mutex
	launches    []string // proxy servers in launch order
	launchErrs  map[string]error
	launchDelay time.Duration
	tabErr      error
	cookieList  []models.Cookie
}

func (f *fakeDriver) driver() *browserDriver {
	return &browserDriver{
		launch: func(ctx context.Context, spec launchSpec) (context.Context, context.CancelFunc, error) {
			if f.launchDelay > 0 {
				time.Sleep(f.launchDelay)
			}
			f.mu.Lock()
			f.launches = append(f.launches, spec.ProxyServer)
			err := f.launchErrs[spec.ProxyServer]
			f.mu.Unlock()
			if err != nil {
				return nil, nil, err
			}
			browserCtx, cancel := context.WithCancel(context.Background())
			return browserCtx, cancel, nil
		},
		probe: func(browserCtx context.Context, _ time.Duration) error {
			return browserCtx.Err()
		},
		openTab: func(browserCtx context.Context, _ *models.FingerprintProfile) (context.Context, context.CancelFunc, error) {
			if f.tabErr != nil {
				return nil, nil, f.tabErr
			}
			tabCtx, cancel := context.WithCancel(browserCtx)
			return tabCtx, cancel, nil
		},
		cookies: func(_ context.Context) ([]models.Cookie, error) {
			return f.cookieList, nil
		},
	}
}

func (f *fakeDriver) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

type fakeFingerprints struct{}

func (fakeFingerprints) GetOrCreate(accountID string) (*models.FingerprintProfile, error) {
	return &models.FingerprintProfile{
		AccountID: accountID,
		UserAgent: "Mozilla/5.0 (test)",
		Viewport:  models.Viewport{Width: 1280, Height: 720},
	}, nil
}

type fakeGate struct {
	candidates []models.ProxyCandidate
	err        error
}

func (g *fakeGate) CheckHealth(_ context.Context, server string) *models.ProxyHealthRecord {
	return &models.ProxyHealthRecord{Server: server, Healthy: true}
}

func (g *fakeGate) Resolve(_ context.Context, _ *models.ProxyConfig) ([]models.ProxyCandidate, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.candidates, nil
}

func (g *fakeGate) PurgeExpired() int { return 0 }

func directOnly() *fakeGate {
	return &fakeGate{candidates: []models.ProxyCandidate{{Tier: models.ProxyTierDirect}}}
}

func newTestManager(t *testing.T, driver *fakeDriver, gate interfaces.ProxyGate) *Manager {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.ProfilesDir = t.TempDir()
	m := NewManager(cfg, fakeFingerprints{}, gate, nil, arbor.NewLogger())
	m.driver = driver.driver()
	return m
}

func TestGetPage_CreatesContextAndReusesPage(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	first, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{Purpose: "login", ReuseExisting: true})
	require.NoError(t, err)
	require.True(t, first.Alive())

	second, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{Purpose: "login", ReuseExisting: true})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, driver.launchCount(), "one browser launch for repeated page requests")
}

func TestGetPage_DistinctPurposesShareContext(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	login, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{Purpose: "login"})
	require.NoError(t, err)
	scrape, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{Purpose: "scrape"})
	require.NoError(t, err)

	assert.NotSame(t, login, scrape)
	assert.Equal(t, 1, driver.launchCount())
}

func TestGetPage_RecreatesDeadContextOnce(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	page, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	// Kill the browser behind the manager's back
	sess := m.lookup("acc_1")
	require.NotNil(t, sess)
	sess.cancel()
	require.False(t, page.Alive())

	fresh, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)
	assert.True(t, fresh.Alive())
	assert.Equal(t, 2, driver.launchCount())
}

func TestGetPage_RecreateFailureIsUnrecoverable(t *testing.T) {
	driver := &fakeDriver{launchErrs: map[string]error{}}
	m := newTestManager(t, driver, directOnly())

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	sess := m.lookup("acc_1")
	require.NotNil(t, sess)
	sess.cancel()

	driver.mu.Lock()
	driver.launchErrs[""] = errors.New("chrome exited immediately")
	driver.mu.Unlock()

	_, err = m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	assert.ErrorIs(t, err, ErrSessionUnrecoverable)
}

func TestGetPage_FirstCreationFailureIsNotUnrecoverable(t *testing.T) {
	driver := &fakeDriver{launchErrs: map[string]error{"": errors.New("chrome exited immediately")}}
	m := newTestManager(t, driver, directOnly())

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionUnrecoverable))
}

func TestGetPage_LaunchFallsBackThroughCascade(t *testing.T) {
	driver := &fakeDriver{launchErrs: map[string]error{
		"http://primary:8080": errors.New("tunnel refused"),
	}}
	gate := &fakeGate{candidates: []models.ProxyCandidate{
		{Tier: models.ProxyTierPrimary, Server: "http://primary:8080"},
		{Tier: models.ProxyTierFallback, Server: "http://fallback:8080"},
		{Tier: models.ProxyTierDirect},
	}}
	m := newTestManager(t, driver, gate)

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	path := m.NetworkPath("acc_1")
	require.NotNil(t, path)
	assert.Equal(t, models.ProxyTierFallback, path.Tier)
	assert.Equal(t, "http://fallback:8080", path.Server)
}

func TestGetPage_AllLaunchesFail(t *testing.T) {
	driver := &fakeDriver{launchErrs: map[string]error{
		"http://primary:8080": errors.New("down"),
		"":                    errors.New("down"),
	}}
	gate := &fakeGate{candidates: []models.ProxyCandidate{
		{Tier: models.ProxyTierPrimary, Server: "http://primary:8080"},
		{Tier: models.ProxyTierDirect},
	}}
	m := newTestManager(t, driver, gate)

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	assert.Error(t, err)
}

func TestGetPage_GateErrorPropagates(t *testing.T) {
	driver := &fakeDriver{}
	gate := &fakeGate{err: errors.New("all proxy tiers exhausted")}
	m := newTestManager(t, driver, gate)

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	assert.Error(t, err)
	assert.Equal(t, 0, driver.launchCount())
}

func TestGetPage_ConcurrentCallersShareOneLaunch(t *testing.T) {
	driver := &fakeDriver{launchDelay: 20 * time.Millisecond}
	m := newTestManager(t, driver, directOnly())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{ReuseExisting: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, driver.launchCount(), "per-account mutex must serialize creation")
}

func TestGetPage_IsolationAcrossAccounts(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	for i := 0; i < 3; i++ {
		_, err := m.GetPage(context.Background(), fmt.Sprintf("acc_%d", i), interfaces.PageOptions{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, driver.launchCount())
	stats := m.Stats()
	assert.Equal(t, 3, stats["active_contexts"])
}

func TestClosePage_KeepsContextAlive(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	page, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{Purpose: "login"})
	require.NoError(t, err)

	m.ClosePage("acc_1", "login")

	assert.False(t, page.Alive())
	assert.True(t, m.IsContextValid("acc_1"))
}

func TestCloseContext_RemovesRegistryEntry(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	require.NoError(t, m.CloseContext(context.Background(), "acc_1", false))
	assert.False(t, m.IsContextValid("acc_1"))
	assert.Nil(t, m.NetworkPath("acc_1"))

	// Idempotent
	assert.NoError(t, m.CloseContext(context.Background(), "acc_1", false))
}

func TestSnapshotCookies_WritesStorageState(t *testing.T) {
	driver := &fakeDriver{cookieList: []models.Cookie{
		{Name: "sessionid", Value: "abc", Domain: ".example.com"},
	}}
	m := newTestManager(t, driver, directOnly())

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	cookies, err := m.SnapshotCookies(context.Background(), "acc_1")
	require.NoError(t, err)
	require.Len(t, cookies, 1)

	statePath := filepath.Join(m.cfg.Storage.ProfilesDir, "acc_1", "storage_state.json")
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sessionid")
}

func TestSnapshotCookies_NoSession(t *testing.T) {
	m := newTestManager(t, &fakeDriver{}, directOnly())

	_, err := m.SnapshotCookies(context.Background(), "acc_unknown")
	assert.Error(t, err)
}

func TestShutdown_ClosesAllContexts(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	for i := 0; i < 3; i++ {
		_, err := m.GetPage(context.Background(), fmt.Sprintf("acc_%d", i), interfaces.PageOptions{})
		require.NoError(t, err)
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 0, m.Stats()["active_contexts"])
}

func TestWatch_PurgesRegistryOnDisconnect(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, directOnly())

	_, err := m.GetPage(context.Background(), "acc_1", interfaces.PageOptions{})
	require.NoError(t, err)

	sess := m.lookup("acc_1")
	require.NotNil(t, sess)
	sess.cancel()

	assert.Eventually(t, func() bool {
		return m.lookup("acc_1") == nil
	}, time.Second, 5*time.Millisecond)
}
