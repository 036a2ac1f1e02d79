package login

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

const checkTimeout = 5 * time.Second

// SiteChecker evaluates login completion from the configured site profile.
// Three independent signals are checked; any single positive one completes
// the login: navigation away from the login page, a logged-in DOM marker,
// or a known session cookie.
type SiteChecker struct {
	site   common.SiteProfileConfig
	logger arbor.ILogger
}

// NewSiteChecker creates a completion checker for the configured site
func NewSiteChecker(cfg common.LoginConfig, logger arbor.ILogger) interfaces.LoginCompletionChecker {
	return &SiteChecker{site: cfg.Site, logger: logger}
}

// CheckCompletion reports whether the login has completed. A hard browser
// error is surfaced so the caller can distinguish "not yet" from "gone".
func (c *SiteChecker) CheckCompletion(ctx context.Context, page *models.Page) (bool, error) {
	if !page.Alive() {
		return false, ErrBrowserGone
	}

	checkCtx, cancel := context.WithTimeout(page.Ctx, checkTimeout)
	defer cancel()

	var location string
	if err := chromedp.Run(checkCtx, chromedp.Location(&location)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBrowserGone, err)
	}

	if c.navigatedAway(location) {
		c.logger.Debug().Str("location", location).Msg("Login completed: navigated away from login page")
		return true, nil
	}

	for _, marker := range c.site.LoggedInMarkers {
		var present bool
		script := fmt.Sprintf("document.querySelector(%q) !== null", marker)
		if err := chromedp.Run(checkCtx, chromedp.Evaluate(script, &present)); err != nil {
			return false, fmt.Errorf("%w: %v", ErrBrowserGone, err)
		}
		if present {
			c.logger.Debug().Str("marker", marker).Msg("Login completed: logged-in marker present")
			return true, nil
		}
	}

	if len(c.site.SessionCookies) > 0 {
		found, err := c.hasSessionCookie(checkCtx)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBrowserGone, err)
		}
		if found {
			return true, nil
		}
	}

	return false, nil
}

// navigatedAway reports whether the page has left the login surface
func (c *SiteChecker) navigatedAway(location string) bool {
	if location == "" || location == "about:blank" {
		return false
	}

	loginURL, err := url.Parse(c.site.LoginURL)
	if err != nil {
		return false
	}
	current, err := url.Parse(location)
	if err != nil {
		return false
	}

	// Internal pages (chrome-error:// etc.) mean navigation failed, not login
	if current.Scheme != "http" && current.Scheme != "https" {
		return false
	}

	// Post-login redirects routinely land on a sibling host, so any URL off
	// the login origin counts
	if current.Host != loginURL.Host {
		return true
	}
	return !strings.HasPrefix(current.Path, loginURL.Path)
}

func (c *SiteChecker) hasSessionCookie(ctx context.Context) (bool, error) {
	var found bool
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, cookie := range cookies {
			for _, name := range c.site.SessionCookies {
				if cookie.Name == name && cookie.Value != "" {
					c.logger.Debug().Str("cookie", name).Msg("Login completed: session cookie present")
					found = true
					return nil
				}
			}
		}
		return nil
	}))
	return found, err
}
