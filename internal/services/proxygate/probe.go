package proxygate

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/oxbowlabs/vantage/internal/common"
)

// newBrowserProbe builds the default probe: a throwaway headless browser
// navigates to the configured reachability URL through the candidate proxy.
// The browser is always disposed, success or failure, so probes never leak
// into the session registry.
func newBrowserProbe(cfg *common.Config) ProbeFunc {
	browser := cfg.Browser
	target := cfg.Proxy.ReachabilityURL

	return func(ctx context.Context, server string) error {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", browser.Headless),
			chromedp.Flag("disable-gpu", browser.DisableGPU),
			chromedp.Flag("no-sandbox", browser.NoSandbox),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if server != "" {
			opts = append(opts, chromedp.ProxyServer(server))
		}

		allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
		defer allocatorCancel()

		probeCtx, probeCancel := chromedp.NewContext(allocatorCtx)
		defer probeCancel()

		if err := chromedp.Run(probeCtx, chromedp.Navigate(target)); err != nil {
			return fmt.Errorf("reachability probe via %s failed: %w", displayServer(server), err)
		}

		return nil
	}
}
