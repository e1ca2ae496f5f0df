package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Render    RenderConfig
	Browser   BrowserConfig
	LLM       LLMConfig
	Retry     RetryConfig
	Funds     FundsConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// RenderConfig controls the page-rendering collaborator.
type RenderConfig struct {
	// Mode selects the renderer: "remote" (Firecrawl-style API, default)
	// or "browser" (local headless Chrome).
	Mode string

	// BaseURL is the remote rendering API base URL.
	BaseURL string // default: "https://api.firecrawl.dev/"

	// APIKey authenticates against the remote rendering API.
	APIKey string

	// PageTimeout is the in-page render deadline passed to the service.
	PageTimeout time.Duration // default: 60s

	// RequestTimeout is the HTTP deadline for one render call.
	RequestTimeout time.Duration // default: 30s

	// Attempts is the transport-level retry budget per render call.
	Attempts int // default: 3

	// RetryWait is the fixed wait between transport retries.
	RetryWait time.Duration // default: 2s
}

// BrowserConfig controls the local Rod browser (render mode "browser").
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string
}

// LLMConfig controls the structured-extraction collaborator.
type LLMConfig struct {
	// APIKey authenticates against the extraction API.
	APIKey string

	// Model is the generative model used for both pipeline stages.
	Model string // default: "gemini-2.5-flash"

	// BaseURL is the extraction API base URL.
	BaseURL string // default: "https://generativelanguage.googleapis.com"

	// RequestTimeout is the HTTP deadline for one extraction call.
	RequestTimeout time.Duration // default: 120s
}

// RetryConfig controls the per-fund semantic retry policy.
type RetryConfig struct {
	// MaxAttempts is the total invocation budget per fund.
	MaxAttempts int // default: 3

	// MinWait is the first backoff interval.
	MinWait time.Duration // default: 4s

	// MaxWait caps the backoff interval.
	MaxWait time.Duration // default: 10s
}

// FundsConfig controls roster membership at deployment level.
type FundsConfig struct {
	// Disabled lists roster symbols excluded from runs.
	// default: ["BTCO"] (known upstream issue with its holdings page).
	Disabled []string
}

// CacheConfig controls the daily snapshot cache.
type CacheConfig struct {
	// MaxAge is how long a completed run may be served from cache.
	// Zero disables caching.
	MaxAge time.Duration // default: 1h
}

// WebhookConfig controls run-completion notifications.
type WebhookConfig struct {
	// URL receives a signed event after each orchestration run.
	// Empty disables delivery.
	URL string

	// Secret signs the event body (HMAC-SHA256).
	Secret string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("TREASURY_HOST", "0.0.0.0"),
			Port: envIntOr("TREASURY_PORT", 8080),
			Mode: envOr("TREASURY_MODE", "release"),
		},
		Render: RenderConfig{
			Mode:           envOr("TREASURY_RENDER_MODE", "remote"),
			BaseURL:        envOr("TREASURY_RENDER_BASE_URL", "https://api.firecrawl.dev/"),
			APIKey:         os.Getenv("TREASURY_RENDER_API_KEY"),
			PageTimeout:    envDurationOr("TREASURY_RENDER_PAGE_TIMEOUT", 60*time.Second),
			RequestTimeout: envDurationOr("TREASURY_RENDER_TIMEOUT", 30*time.Second),
			Attempts:       envIntOr("TREASURY_RENDER_ATTEMPTS", 3),
			RetryWait:      envDurationOr("TREASURY_RENDER_RETRY_WAIT", 2*time.Second),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("TREASURY_HEADLESS", true),
			MaxPages:     envIntOr("TREASURY_MAX_PAGES", 10),
			NoSandbox:    envBoolOr("TREASURY_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("TREASURY_BROWSER_BIN"),
			DefaultProxy: os.Getenv("TREASURY_PROXY"),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("TREASURY_LLM_API_KEY"),
			Model:          envOr("TREASURY_LLM_MODEL", "gemini-2.5-flash"),
			BaseURL:        envOr("TREASURY_LLM_BASE_URL", "https://generativelanguage.googleapis.com"),
			RequestTimeout: envDurationOr("TREASURY_LLM_TIMEOUT", 120*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: envIntOr("TREASURY_RETRY_ATTEMPTS", 3),
			MinWait:     envDurationOr("TREASURY_RETRY_MIN_WAIT", 4*time.Second),
			MaxWait:     envDurationOr("TREASURY_RETRY_MAX_WAIT", 10*time.Second),
		},
		Funds: FundsConfig{
			Disabled: envSliceOr("TREASURY_DISABLED_FUNDS", []string{"BTCO"}),
		},
		Cache: CacheConfig{
			MaxAge: envDurationOr("TREASURY_CACHE_MAX_AGE", time.Hour),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("TREASURY_WEBHOOK_URL"),
			Secret: os.Getenv("TREASURY_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TREASURY_AUTH_ENABLED", true),
			APIKeys: envSliceOr("TREASURY_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TREASURY_RATE_RPS", 1.0),
			Burst:             envIntOr("TREASURY_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("TREASURY_LOG_LEVEL", "info"),
			Format: envOr("TREASURY_LOG_FORMAT", "json"),
		},
	}
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

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
