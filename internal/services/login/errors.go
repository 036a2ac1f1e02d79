package login

import (
	"context"
	"errors"

	"github.com/oxbowlabs/vantage/internal/models"
	"github.com/oxbowlabs/vantage/internal/services/proxygate"
	"github.com/oxbowlabs/vantage/internal/services/session"
)

// ErrQRNotFound is returned when no QR element could be located on the
// login page after all selectors and the markup fallback were tried.
var ErrQRNotFound = errors.New("qr code not found on login page")

// ErrBrowserGone is returned when the page or its browser died mid-attempt.
var ErrBrowserGone = errors.New("browser crashed or disconnected")

// classifyError maps an internal error to the stable error type string
// surfaced on login_failed events
func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, proxygate.ErrAllProxyTiersExhausted):
		return models.ErrTypeAllProxyTiersExhausted
	case errors.Is(err, session.ErrSessionUnrecoverable):
		return models.ErrTypeSessionUnrecoverable
	case errors.Is(err, session.ErrLaunchFailed):
		return models.ErrTypeProxyUnreachable
	case errors.Is(err, ErrQRNotFound):
		return models.ErrTypeQRNotFound
	case errors.Is(err, ErrBrowserGone):
		return models.ErrTypeBrowserCrashed
	case errors.Is(err, context.Canceled):
		return models.ErrTypeLoginCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrTypeLoginTimeout
	default:
		return models.ErrTypeInternal
	}
}
