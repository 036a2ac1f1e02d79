package models

import (
	"context"
	"time"
)

// Page is a borrowed reference to one browser tab owned by the session
// manager. Callers drive it via its chromedp context but never own it:
// closing the tab or the account context is the session manager's job.
type Page struct {
	AccountID string
	Purpose   string
	Ctx       context.Context
	Cancel    context.CancelFunc
	CreatedAt time.Time
}

// Alive reports whether the page's context is still usable
func (p *Page) Alive() bool {
	return p != nil && p.Ctx != nil && p.Ctx.Err() == nil
}
