package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/models"
)

// launchSpec carries everything a browser launch needs for one account
type launchSpec struct {
	AccountID   string
	ProfileDir  string
	ProxyServer string
	Fingerprint *models.FingerprintProfile
}

// browserDriver abstracts the browser engine so the manager's registry and
// recovery logic is testable without launching Chrome
type browserDriver struct {
	// launch starts a browser bound to the profile directory and network
	// path; the returned cancel tears down both browser and allocator
	launch func(ctx context.Context, spec launchSpec) (context.Context, context.CancelFunc, error)

	// probe cheaply verifies the browser still answers the DevTools protocol
	probe func(browserCtx context.Context, timeout time.Duration) error

	// openTab opens a new tab in the browser with init scripts applied
	openTab func(browserCtx context.Context, fp *models.FingerprintProfile) (context.Context, context.CancelFunc, error)

	// cookies reads all cookies visible to the given tab
	cookies func(ctx context.Context) ([]models.Cookie, error)
}

func newChromedpDriver(cfg common.BrowserConfig) *browserDriver {
	return &browserDriver{
		launch:  chromedpLaunch(cfg),
		probe:   chromedpProbe,
		openTab: chromedpOpenTab,
		cookies: chromedpCookies,
	}
}

func chromedpLaunch(cfg common.BrowserConfig) func(context.Context, launchSpec) (context.Context, context.CancelFunc, error) {
	return func(ctx context.Context, spec launchSpec) (context.Context, context.CancelFunc, error) {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", cfg.DisableGPU),
			chromedp.Flag("no-sandbox", cfg.NoSandbox),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("lang", spec.Fingerprint.Locale),
			chromedp.UserDataDir(spec.ProfileDir),
			chromedp.UserAgent(spec.Fingerprint.UserAgent),
			chromedp.WindowSize(spec.Fingerprint.Viewport.Width, spec.Fingerprint.Viewport.Height),
		)
		if spec.ProxyServer != "" {
			opts = append(opts, chromedp.ProxyServer(spec.ProxyServer))
		}

		allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

		cleanup := func() {
			browserCancel()
			allocatorCancel()
		}

		// Startup test: a browser that cannot reach about:blank through its
		// configured network path is useless and torn down immediately
		startupCtx, startupCancel := context.WithTimeout(browserCtx, cfg.LaunchTimeout)
		defer startupCancel()

		if err := chromedp.Run(startupCtx,
			applyInitScripts(spec.Fingerprint),
			chromedp.Navigate("about:blank"),
		); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("browser failed startup test: %w", err)
		}

		return browserCtx, cleanup, nil
	}
}

// chromedpProbe lists DevTools targets as a cheap liveness signal. A crashed
// or disconnected browser fails here without any page interaction.
func chromedpProbe(browserCtx context.Context, timeout time.Duration) error {
	if browserCtx.Err() != nil {
		return browserCtx.Err()
	}

	probeCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	return chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := target.GetTargets().Do(ctx)
		return err
	}))
}

func chromedpOpenTab(browserCtx context.Context, fp *models.FingerprintProfile) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	// Init scripts must be registered before the first navigation so the
	// overrides are in place when site code runs
	if err := chromedp.Run(tabCtx, applyInitScripts(fp)); err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("failed to prepare tab: %w", err)
	}

	return tabCtx, tabCancel, nil
}

// applyInitScripts registers the fingerprint and anti-automation overrides
// to run in every document before site scripts
func applyInitScripts(fp *models.FingerprintProfile) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, script := range []string{stealthScript, fingerprintScript(fp)} {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func chromedpCookies(ctx context.Context) ([]models.Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}

	return cookies, nil
}
