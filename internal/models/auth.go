package models

// SessionCredentials represents the stored authentication state captured
// from a browser context after a successful login
type SessionCredentials struct {
	ID                string `json:"id"` // accountID (one record per account)
	AccountID         string `json:"account_id"`
	SiteName          string `json:"site_name"`
	Cookies           []byte `json:"cookies"` // Serialized []Cookie
	CookiesValidUntil int64  `json:"cookies_valid_until"` // epoch seconds
	UserAgent         string `json:"user_agent"`
	ProxyUsed         string `json:"proxy_used,omitempty"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

// Cookie is the serialized form of a browser cookie for snapshots
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // epoch seconds, -1 for session cookies
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
}
