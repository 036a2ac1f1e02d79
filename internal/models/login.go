package models

import "time"

// LoginStatus represents the login state machine position
type LoginStatus string

const (
	LoginStatusPending  LoginStatus = "pending"
	LoginStatusScanning LoginStatus = "scanning"
	LoginStatusSuccess  LoginStatus = "success"
	LoginStatusFailed   LoginStatus = "failed"
	LoginStatusExpired  LoginStatus = "expired"
)

// Terminal returns true when no further transitions are possible
func (s LoginStatus) Terminal() bool {
	return s == LoginStatusSuccess || s == LoginStatusFailed
}

// Stable error type strings surfaced on login_failed events. Callers key
// their own retry policy off these, so they must not change.
const (
	ErrTypeProxyUnreachable        = "ProxyUnreachable"
	ErrTypeQRNotFound              = "QrNotFound"
	ErrTypeQRRefreshLimitExceeded  = "QrRefreshLimitExceeded"
	ErrTypeLoginTimeout            = "LoginTimeout"
	ErrTypeBrowserCrashed          = "BrowserCrashedOrDisconnected"
	ErrTypeAllProxyTiersExhausted  = "AllProxyTiersExhausted"
	ErrTypeSessionUnrecoverable    = "SessionUnrecoverable"
	ErrTypeLoginCancelled          = "LoginCancelled"
	ErrTypeInternal                = "InternalError"
)

// LoginSession tracks one login attempt from start to terminal status
type LoginSession struct {
	AccountID      string      `json:"account_id"`
	SessionID      string      `json:"session_id"`
	Status         LoginStatus `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	QRGeneratedAt  time.Time   `json:"qr_generated_at"`
	QRRefreshCount int         `json:"qr_refresh_count"`
	MaxQRRefreshes int         `json:"max_qr_refreshes"`
	ProxyUsed      string      `json:"proxy_used,omitempty"`
	FallbackTier   ProxyTier   `json:"fallback_tier,omitempty"`
}

// LoginAck is the synchronous acknowledgment returned by StartLogin
type LoginAck struct {
	Success   bool        `json:"success"`
	SessionID string      `json:"session_id"`
	Status    LoginStatus `json:"status"`
}

// LoginChallenge is a located, captured login challenge (QR image today;
// the Method field leaves room for SMS-code challenges)
type LoginChallenge struct {
	Method      string    `json:"method"` // "qr"
	ImageBase64 string    `json:"image_base64"`
	GeneratedAt time.Time `json:"generated_at"`
}

// LoginEvent is the payload published for all login lifecycle events
type LoginEvent struct {
	AccountID         string    `json:"account_id"`
	SessionID         string    `json:"session_id"`
	QRImageBase64     string    `json:"qr_image_base64,omitempty"`
	RefreshCount      int       `json:"refresh_count,omitempty"`
	ErrorType         string    `json:"error_type,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CookiesValidUntil int64     `json:"cookies_valid_until,omitempty"` // epoch seconds
	Timestamp         time.Time `json:"timestamp"`
}
