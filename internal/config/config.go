package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DataDir            string
	CORSAllowedOrigins []string

	// Remote key-value backend. Both URL and token must be present.
	KVURL    string
	KVToken  string
	RedisURL string

	QuoteRateLimitWindowSeconds int
	QuoteRateLimitMax           int

	GeminiAPIKey      string
	GeminiModel       string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	DetectionTimeout  time.Duration

	AuthJWTSecret     string
	AdminEmail        string
	AdminPasswordHash string
	AdminTOTPSecret   string
	SessionTTL        time.Duration
	CookieSecure      bool

	AssetS3Bucket       string
	AssetSweepSchedule  string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	LeadNotifyEmail   string

	// Region used to read WhatsApp numbers written without a country code.
	DefaultPhoneRegion string
}

// Load reads configuration from environment variables
func Load() *Config {
	kvURL := normalizeURL(getEnv("KV_REST_API_URL", ""))
	kvToken := normalizeEnv(getEnv("KV_REST_API_TOKEN", ""))
	if kvURL == "" || kvToken == "" {
		kvURL = normalizeURL(getEnv("UPSTASH_REDIS_REST_URL", ""))
		kvToken = normalizeEnv(getEnv("UPSTASH_REDIS_REST_TOKEN", ""))
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DataDir:            getEnv("DATA_DIR", filepath.Join(".", "data")),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		KVURL:    kvURL,
		KVToken:  kvToken,
		RedisURL: normalizeEnv(getEnv("REDIS_URL", "")),

		QuoteRateLimitWindowSeconds: clampInt(getEnvAsInt("QUOTE_RATE_LIMIT_WINDOW_SECONDS", 300), 30, 3600),
		QuoteRateLimitMax:           clampInt(getEnvAsInt("QUOTE_RATE_LIMIT_MAX", 10), 1, 200),

		GeminiAPIKey:      normalizeEnv(getEnv("GEMINI_API_KEY", "")),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenRouterAPIKey:  normalizeEnv(getEnv("OPENROUTER_API_KEY", "")),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "google/gemini-2.5-flash"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		DetectionTimeout:  getEnvAsDuration("DETECTION_TIMEOUT", 12*time.Second),

		AuthJWTSecret:     normalizeEnv(getEnv("AUTH_JWT_SECRET", "")),
		AdminEmail:        normalizeEnv(getEnv("ADMIN_EMAIL", "")),
		AdminPasswordHash: normalizeEnv(getEnv("ADMIN_PASSWORD_HASH", "")),
		AdminTOTPSecret:   normalizeEnv(getEnv("ADMIN_TOTP_SECRET", "")),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		CookieSecure:      getEnvAsBool("COOKIE_SECURE", true),

		AssetS3Bucket:       getEnv("ASSET_S3_BUCKET", ""),
		AssetSweepSchedule:  getEnv("ASSET_SWEEP_SCHEDULE", "@hourly"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "UOOTD Concierge"),
		LeadNotifyEmail:   getEnv("LEAD_NOTIFY_EMAIL", ""),

		DefaultPhoneRegion: strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
	}
}

// KVConfigured reports whether a remote key-value backend can be dialed.
func (c *Config) KVConfigured() bool {
	if c == nil {
		return false
	}
	return c.RedisURL != "" || (c.KVURL != "" && c.KVToken != "")
}

// normalizeEnv trims whitespace and one layer of matching quotes, which
// hosting dashboards tend to leave around pasted secrets.
func normalizeEnv(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return trimmed[1 : len(trimmed)-1]
		}
	}
	return trimmed
}

func normalizeURL(value string) string {
	normalized := normalizeEnv(value)
	if normalized == "" {
		return ""
	}
	if strings.Contains(normalized, "://") {
		return normalized
	}
	return "https://" + normalized
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
