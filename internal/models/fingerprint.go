package models

import "time"

// FingerprintProfile is the synthetic device identity presented for one
// account. It is derived deterministically from the account ID on first use
// and never regenerated afterwards: a fingerprint that changes between runs
// is itself a detection signal.
type FingerprintProfile struct {
	AccountID   string    `json:"account_id"`
	CreatedAt   time.Time `json:"created_at"`
	UserAgent   string    `json:"user_agent"`
	Viewport    Viewport  `json:"viewport"`
	WebGL       WebGL     `json:"webgl"`
	CanvasNoise float64   `json:"canvas_noise"`
	AudioNoise  float64   `json:"audio_noise"`
	Hardware    Hardware  `json:"hardware"`
	Screen      Screen    `json:"screen"`
	Locale      string    `json:"locale"`
	Timezone    string    `json:"timezone"`
	Fonts       []string  `json:"fonts"`
	PluginCount int       `json:"plugin_count"`
}

// Viewport is the browser window content size
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WebGL holds the spoofed GPU identification strings
type WebGL struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}

// Hardware holds the spoofed machine characteristics
type Hardware struct {
	Cores    int `json:"cores"`
	MemoryGB int `json:"memory_gb"`
}

// Screen holds the spoofed physical display characteristics
type Screen struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"color_depth"`
	PixelRatio float64 `json:"pixel_ratio"`
}
