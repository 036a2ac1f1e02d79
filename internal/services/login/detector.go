package login

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

const selectorTimeout = 5 * time.Second

// SiteDetector is the default login method detector, driven entirely by the
// configured site profile. It tries each QR selector in order and falls
// back to scanning the page markup for an inline QR image.
type SiteDetector struct {
	site       common.SiteProfileConfig
	settle     time.Duration
	logger     arbor.ILogger
	pageRetry  *RetryPolicy
	queryRetry *RetryPolicy
}

// NewSiteDetector creates a detector for the configured site profile
func NewSiteDetector(cfg common.LoginConfig, logger arbor.ILogger) interfaces.LoginMethodDetector {
	return &SiteDetector{
		site:       cfg.Site,
		settle:     cfg.SettleDelay,
		logger:     logger,
		pageRetry:  PageLoadRetryPolicy(),
		queryRetry: ElementSearchRetryPolicy(),
	}
}

// Site names the target site profile
func (d *SiteDetector) Site() string {
	return d.site.Name
}

// DetectChallenge navigates to the login origin, waits for the login
// overlay to settle, and captures the QR code
func (d *SiteDetector) DetectChallenge(ctx context.Context, page *models.Page) (*models.LoginChallenge, error) {
	err := d.pageRetry.Execute(ctx, d.logger, "login-page-load", func() error {
		return chromedp.Run(page.Ctx,
			chromedp.Navigate(d.site.LoginURL),
			chromedp.Sleep(d.settle),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}

	return d.capture(ctx, page)
}

// RefreshChallenge reloads the page and re-extracts a fresh challenge
func (d *SiteDetector) RefreshChallenge(ctx context.Context, page *models.Page) (*models.LoginChallenge, error) {
	err := d.pageRetry.Execute(ctx, d.logger, "login-page-reload", func() error {
		return chromedp.Run(page.Ctx,
			chromedp.Reload(),
			chromedp.Sleep(d.settle),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reload login page: %w", err)
	}

	return d.capture(ctx, page)
}

// capture tries the ordered selectors with a screenshot, then the markup
// fallback; first hit wins
func (d *SiteDetector) capture(ctx context.Context, page *models.Page) (*models.LoginChallenge, error) {
	var image string

	err := d.queryRetry.Execute(ctx, d.logger, "qr-capture", func() error {
		for _, selector := range d.site.QRSelectors {
			buf, err := d.screenshot(page, selector)
			if err != nil {
				d.logger.Debug().
					Str("selector", selector).
					Err(err).
					Msg("QR selector missed")
				continue
			}
			image = base64.StdEncoding.EncodeToString(buf)
			return nil
		}

		if fallback, err := d.scanMarkup(page); err == nil {
			image = fallback
			return nil
		}

		return ErrQRNotFound
	})
	if err != nil {
		return nil, err
	}

	return &models.LoginChallenge{
		Method:      "qr",
		ImageBase64: image,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// screenshot captures one element; bounded per selector so a missing
// element cannot eat the whole attempt budget
func (d *SiteDetector) screenshot(page *models.Page, selector string) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(page.Ctx, selectorTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx,
		chromedp.Screenshot(selector, &buf, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty screenshot for selector %s", selector)
	}
	return buf, nil
}

// scanMarkup is the fallback for sites that inline the QR as a data URI:
// parse the rendered markup and pull the first plausible image out
func (d *SiteDetector) scanMarkup(page *models.Page) (string, error) {
	htmlCtx, cancel := context.WithTimeout(page.Ctx, selectorTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}

	return extractDataURIImage(html)
}

// extractDataURIImage finds the first data-URI image in QR-looking markup
func extractDataURIImage(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page markup: %w", err)
	}

	var image string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || !strings.HasPrefix(src, "data:image/") {
			return true
		}

		// Prefer images that look QR-related, but accept any data URI
		// inside an element whose class or alt mentions qr
		if !qrContext(sel) {
			return true
		}

		if idx := strings.Index(src, "base64,"); idx >= 0 {
			image = src[idx+len("base64,"):]
			return false
		}
		return true
	})

	if image == "" {
		return "", ErrQRNotFound
	}
	return image, nil
}

// qrContext reports whether the image or any ancestor looks QR-related
func qrContext(sel *goquery.Selection) bool {
	if alt, ok := sel.Attr("alt"); ok && strings.Contains(strings.ToLower(alt), "qr") {
		return true
	}
	for node := sel; node.Length() > 0; node = node.Parent() {
		if class, ok := node.Attr("class"); ok && strings.Contains(strings.ToLower(class), "qr") {
			return true
		}
	}
	return false
}
