package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Analyzer backend
	AnalyzerAPIURL string

	// HTTP client
	HTTPTimeout    time.Duration
	AnalyzeTimeout time.Duration // analyzers run LLM generation; they get a longer budget

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL     time.Duration
	WorkspaceTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Token storage
	TokenDBPath   string
	TokenStoreKey string

	// Workspace tokens
	WorkspaceSecret string

	// Affiliate offers
	OffersFile        string
	AffiliateInterval time.Duration

	// Intake limits
	MaxUploadBytes int64
	MaxPDFPages    int

	// Rate limiting (per workspace)
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS
	CORSOrigins []string

	// Behaviour
	EditInvalidatesReports      bool
	DisclaimerResetsOnFullReset bool
	DefaultProjectType          string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AnalyzerAPIURL: strings.TrimRight(getEnv("ANALYZER_API_URL", "http://localhost:8000"), "/"),

		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		AnalyzeTimeout: getEnvDuration("ANALYZE_TIMEOUT", 120*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
		WorkspaceTTL: getEnvDuration("WORKSPACE_TTL", 30*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		TokenDBPath:   getEnv("TOKEN_DB_PATH", "intake-tokens.db"),
		TokenStoreKey: getEnv("TOKEN_STORE_KEY", ""),

		WorkspaceSecret: getEnv("WORKSPACE_SECRET", "intake-default-dev-secret-change-me"),

		OffersFile:        getEnv("OFFERS_FILE", ""),
		AffiliateInterval: getEnvDuration("AFFILIATE_INTERVAL", 4*time.Second),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		MaxPDFPages:    getEnvInt("MAX_PDF_PAGES", 60),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		EditInvalidatesReports:      getEnvBool("EDIT_INVALIDATES_REPORTS", true),
		DisclaimerResetsOnFullReset: getEnvBool("DISCLAIMER_RESETS_ON_FULL_RESET", false),
		DefaultProjectType:          getEnv("DEFAULT_PROJECT_TYPE", "commercial_construction"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
