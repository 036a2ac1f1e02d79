package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
	Browser     BrowserConfig     `toml:"browser"`
	Proxy       ProxyGateConfig   `toml:"proxy"`
	Login       LoginConfig       `toml:"login"`
	Fingerprint FingerprintConfig `toml:"fingerprint"`
	Janitor     JanitorConfig     `toml:"janitor"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

type StorageConfig struct {
	Badger          BadgerConfig `toml:"badger"`
	ProfilesDir     string       `toml:"profiles_dir"`     // Persistent browser user-data dirs, one per account
	FingerprintsDir string       `toml:"fingerprints_dir"` // Fingerprint profile JSON files, one per account
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// BrowserConfig controls how per-account browser processes are launched
type BrowserConfig struct {
	Headless        bool          `toml:"headless"`
	NoSandbox       bool          `toml:"no_sandbox"`
	DisableGPU      bool          `toml:"disable_gpu"`
	LaunchTimeout   time.Duration `toml:"launch_timeout"`   // Budget for launching and probing a new browser
	LivenessTimeout time.Duration `toml:"liveness_timeout"` // Budget for the cheap context liveness probe
}

// ProxyGateConfig contains proxy health gate configuration
type ProxyGateConfig struct {
	ReachabilityURL       string        `toml:"reachability_url" validate:"omitempty,url"` // Lightweight probe target
	ProbeTimeout          time.Duration `toml:"probe_timeout"`                             // Hard timeout for a single health probe
	CacheTTL              time.Duration `toml:"cache_ttl"`                                 // Health verdict cache lifetime
	ProbeInterval         time.Duration `toml:"probe_interval"`                            // Minimum spacing between probes (rate limit)
	AllowDirectConnection bool          `toml:"allow_direct_connection"`                   // Permit tier 3 direct egress
}

// LoginConfig contains login orchestration configuration
type LoginConfig struct {
	PollInterval   time.Duration     `toml:"poll_interval"`                     // Completion poll spacing
	SettleDelay    time.Duration     `toml:"settle_delay"`                      // Wait after navigation for login overlay render
	QRLifetime     time.Duration     `toml:"qr_lifetime"`                       // QR validity before a refresh is needed
	MaxQRRefreshes int               `toml:"max_qr_refreshes" validate:"gte=0"` // Refresh bound before the attempt fails
	LoginTimeout   time.Duration     `toml:"login_timeout"`                     // Overall wall-clock budget per attempt
	Site           SiteProfileConfig `toml:"site"`
}

// SiteProfileConfig describes the target site's login surface. The default
// login detector is driven entirely from this profile; platform-specific
// detectors can be registered in code instead.
type SiteProfileConfig struct {
	Name            string   `toml:"name" validate:"required"`
	LoginURL        string   `toml:"login_url" validate:"required,url"`
	QRSelectors     []string `toml:"qr_selectors"`      // Ordered candidates, first match wins
	LoggedInMarkers []string `toml:"logged_in_markers"` // DOM markers that only render when authenticated
	SessionCookies  []string `toml:"session_cookies"`   // Cookie names that indicate a live session
	CookieValidDays int      `toml:"cookie_valid_days"` // Advertised cookie validity on login success
}

// FingerprintConfig contains fingerprint derivation configuration
type FingerprintConfig struct {
	Locale   string `toml:"locale"`   // Override locale for all profiles (empty = sampled)
	Timezone string `toml:"timezone"` // Override timezone for all profiles (empty = sampled)
}

// JanitorConfig controls background maintenance sweeps
type JanitorConfig struct {
	Schedule string `toml:"schedule"` // Cron schedule for stale-session/proxy-cache sweeps
}

// NewDefaultConfig returns the default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/vantage.db",
				ResetOnStartup: false,
			},
			ProfilesDir:     "./data/profiles",
			FingerprintsDir: "./data/fingerprints",
		},
		Browser: BrowserConfig{
			Headless:        true,
			NoSandbox:       true,
			DisableGPU:      true,
			LaunchTimeout:   30 * time.Second,
			LivenessTimeout: 3 * time.Second,
		},
		Proxy: ProxyGateConfig{
			ReachabilityURL:       "https://www.gstatic.com/generate_204",
			ProbeTimeout:          10 * time.Second,
			CacheTTL:              5 * time.Minute,
			ProbeInterval:         time.Second,
			AllowDirectConnection: true,
		},
		Login: LoginConfig{
			PollInterval:   2 * time.Second,
			SettleDelay:    3 * time.Second,
			QRLifetime:     150 * time.Second,
			MaxQRRefreshes: 3,
			LoginTimeout:   300 * time.Second,
			Site: SiteProfileConfig{
				Name:     "default",
				LoginURL: "https://www.example.com/login",
				QRSelectors: []string{
					`div[data-e2e="qrcode"] canvas`,
					`div[class*="qrcode"] img`,
					`img[alt*="QR"]`,
					`canvas[class*="qr"]`,
				},
				LoggedInMarkers: []string{
					`[data-e2e="profile-icon"]`,
					`[class*="AvatarWrapper"]`,
				},
				SessionCookies:  []string{"sessionid", "sid_tt"},
				CookieValidDays: 30,
			},
		},
		Fingerprint: FingerprintConfig{},
		Janitor: JanitorConfig{
			Schedule: "@every 5m",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VANTAGE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VANTAGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VANTAGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("VANTAGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("VANTAGE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if headless := os.Getenv("VANTAGE_BROWSER_HEADLESS"); headless != "" {
		config.Browser.Headless = headless != "false" && headless != "0"
	}
	if url := os.Getenv("VANTAGE_PROXY_REACHABILITY_URL"); url != "" {
		config.Proxy.ReachabilityURL = url
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
