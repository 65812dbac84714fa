package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/dirscrape/models"
)

// Config holds all application configuration.
type Config struct {
	Run         RunConfig
	Browser     BrowserConfig
	Fetch       FetchConfig
	Diagnostics DiagnosticsConfig
	Status      StatusConfig
	Webhook     WebhookConfig
	Store       StoreConfig
	Log         LogConfig

	// CookiesFile is the JSON file holding the authentication cookies.
	CookiesFile string

	// Cookies is the immutable cookie configuration, filled by LoadCookies.
	Cookies models.CookieJar
}

// RunConfig controls one enrichment run.
type RunConfig struct {
	// InputPath is the CSV file listing the target URLs.
	InputPath string

	// OutputPath is where the enriched table is written. Empty means InputPath.
	OutputPath string

	// URLColumn names the column holding the target URL.
	URLColumn string // default: "url"

	// RequestDelay is the pause between the end of one row and the next fetch.
	RequestDelay time.Duration // default: 2s

	// Debug persists the rendered markup of every fetched page.
	Debug bool
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: false

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// ViewportWidth and ViewportHeight fix the window and viewport size.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// Stealth injects navigator.webdriver masking on every new document.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetchConfig controls a single navigation cycle.
type FetchConfig struct {
	// Mode selects the engine: "browser" or "http".
	Mode string // default: "browser"

	// OriginSettle bounds the wait for the bare origin to initialise its session.
	OriginSettle time.Duration // default: 2s

	// ReadyTimeout bounds the wait for the basic readiness element.
	ReadyTimeout time.Duration // default: 25s

	// ReadySelector is the basic readiness element.
	ReadySelector string // default: "body"

	// RenderSettle bounds the wait for client-side rendering after readiness.
	RenderSettle time.Duration // default: 5s

	// LandmarkSelector, when present, ends the render wait early.
	LandmarkSelector string

	// StableWindow is how long the DOM must stay unchanged to count as rendered.
	StableWindow time.Duration // default: 500ms

	// Grace is the fixed pause used only when neither signal converges.
	Grace time.Duration // default: 1s

	// AcceptLanguage is sent with every browser request.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// Headers are extra request headers, "Name=Value" pairs.
	Headers map[string]string
}

// DiagnosticsConfig controls the offline-inspection artifacts.
type DiagnosticsConfig struct {
	// Dir receives the diagnostic files.
	Dir string // default: "diagnostics"

	// Enabled persists artifacts for pages with no structured data.
	Enabled bool // default: true

	// RecentSize is how many fingerprints are remembered for dedupe.
	RecentSize int // default: 64

	// SimilarityThreshold is the max fingerprint distance treated as a duplicate.
	SimilarityThreshold int // default: 3
}

// StatusConfig controls the optional status HTTP server.
type StatusConfig struct {
	Addr string // empty disables the server
	Mode string // "debug", "release", "test"; default: "release"

	// APIKeys protect /status and /metrics. Empty means open access.
	APIKeys []string

	// RequestsPerSecond and Burst limit each client of the status server.
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// WebhookConfig controls the run-completed notification.
type WebhookConfig struct {
	URL    string
	Secret string
}

// StoreConfig controls the SQLite run snapshot.
type StoreConfig struct {
	SQLitePath string // empty disables the snapshot
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Run: RunConfig{
			InputPath:    os.Getenv("DIRSCRAPE_CSV"),
			OutputPath:   os.Getenv("DIRSCRAPE_OUTPUT"),
			URLColumn:    envOr("DIRSCRAPE_URL_COLUMN", "url"),
			RequestDelay: envDurationOr("DIRSCRAPE_REQUEST_DELAY", 2*time.Second),
			Debug:        envBoolOr("DIRSCRAPE_DEBUG", false),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("DIRSCRAPE_HEADLESS", false),
			NoSandbox:      envBoolOr("DIRSCRAPE_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("DIRSCRAPE_BROWSER_BIN"),
			Proxy:          os.Getenv("DIRSCRAPE_PROXY"),
			ViewportWidth:  envIntOr("DIRSCRAPE_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("DIRSCRAPE_VIEWPORT_HEIGHT", 1080),
			Stealth:        envBoolOr("DIRSCRAPE_STEALTH", true),
			BlockedResourceTypes: envSliceOr("DIRSCRAPE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Fetch: FetchConfig{
			Mode:             envOr("DIRSCRAPE_FETCH_MODE", "browser"),
			OriginSettle:     envDurationOr("DIRSCRAPE_ORIGIN_SETTLE", 2*time.Second),
			ReadyTimeout:     envDurationOr("DIRSCRAPE_READY_TIMEOUT", 25*time.Second),
			ReadySelector:    envOr("DIRSCRAPE_READY_SELECTOR", "body"),
			RenderSettle:     envDurationOr("DIRSCRAPE_RENDER_SETTLE", 5*time.Second),
			LandmarkSelector: envOr("DIRSCRAPE_LANDMARK_SELECTOR", ".company_name, .profile_row, .compid"),
			StableWindow:     envDurationOr("DIRSCRAPE_STABLE_WINDOW", 500*time.Millisecond),
			Grace:            envDurationOr("DIRSCRAPE_GRACE", 1*time.Second),
			AcceptLanguage:   envOr("DIRSCRAPE_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Headers:          envMapOr("DIRSCRAPE_HEADERS", nil),
		},
		Diagnostics: DiagnosticsConfig{
			Dir:                 envOr("DIRSCRAPE_DIAG_DIR", "diagnostics"),
			Enabled:             envBoolOr("DIRSCRAPE_DIAG_ENABLED", true),
			RecentSize:          envIntOr("DIRSCRAPE_DIAG_RECENT", 64),
			SimilarityThreshold: envIntOr("DIRSCRAPE_DIAG_THRESHOLD", 3),
		},
		Status: StatusConfig{
			Addr: os.Getenv("DIRSCRAPE_STATUS_ADDR"),
			Mode: envOr("DIRSCRAPE_STATUS_MODE", "release"),

			APIKeys:           envSliceOr("DIRSCRAPE_STATUS_API_KEYS", nil),
			RequestsPerSecond: envFloatOr("DIRSCRAPE_STATUS_RPS", 5),
			Burst:             envIntOr("DIRSCRAPE_STATUS_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("DIRSCRAPE_WEBHOOK_URL"),
			Secret: os.Getenv("DIRSCRAPE_WEBHOOK_SECRET"),
		},
		Store: StoreConfig{
			SQLitePath: os.Getenv("DIRSCRAPE_SQLITE_PATH"),
		},
		Log: LogConfig{
			Level:  envOr("DIRSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("DIRSCRAPE_LOG_FORMAT", "text"),
		},
		CookiesFile: os.Getenv("DIRSCRAPE_COOKIES_FILE"),
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Run.URLColumn) == "" {
		return invalid("url column cannot be empty")
	}
	if c.Run.RequestDelay < 0 {
		return invalid("request delay cannot be negative")
	}
	switch c.Fetch.Mode {
	case "browser", "http":
	default:
		return invalid(fmt.Sprintf("unknown fetch mode %q", c.Fetch.Mode))
	}
	if c.Fetch.ReadyTimeout <= 0 {
		return invalid("ready timeout must be positive")
	}
	if c.Fetch.OriginSettle < 0 || c.Fetch.RenderSettle < 0 || c.Fetch.Grace < 0 {
		return invalid("settle intervals cannot be negative")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return invalid("viewport must be positive")
	}
	if c.Status.Addr != "" && (c.Status.RequestsPerSecond <= 0 || c.Status.Burst <= 0) {
		return invalid("status rate limit must be positive")
	}
	if c.Diagnostics.SimilarityThreshold < 0 {
		return invalid("diagnostics similarity threshold cannot be negative")
	}
	return nil
}

// OutputOrInput returns the output path, defaulting to the input path.
func (r RunConfig) OutputOrInput() string {
	if r.OutputPath != "" {
		return r.OutputPath
	}
	return r.InputPath
}

// LoadCookies reads the cookie file (a JSON array of {name,value,domain,path})
// into c.Cookies. An empty CookiesFile leaves the jar empty.
func (c *Config) LoadCookies() error {
	if c.CookiesFile == "" {
		c.Cookies = models.NewCookieJar(nil)
		return nil
	}
	data, err := os.ReadFile(c.CookiesFile)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "read cookies file", err)
	}
	jar, err := ParseCookies(data)
	if err != nil {
		return err
	}
	c.Cookies = jar
	return nil
}

// ParseCookies decodes a JSON array of cookies into an immutable jar.
func ParseCookies(data []byte) (models.CookieJar, error) {
	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return models.CookieJar{}, models.NewScrapeError(models.ErrCodeInvalidInput, "parse cookies", err)
	}
	return models.NewCookieJar(cookies), nil
}

func invalid(msg string) error {
	return models.NewScrapeError(models.ErrCodeInvalidInput, msg, nil)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "Name=Value,Name2=Value2". Malformed pairs are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		result[name] = strings.TrimSpace(value)
	}
	return result
}
