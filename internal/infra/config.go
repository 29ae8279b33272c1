package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	GeoIPDBPath string

	// Provider credentials and endpoints. Both provider families live behind
	// the same kie.ai account, so a single key serves them.
	KieAPIKey     string
	VeoBaseURL    string
	MarketBaseURL string

	ProviderHTTPTimeout time.Duration
	ArtifactTimeout     time.Duration
	PricingCacheTTL     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		KieAPIKey:           os.Getenv("KIE_API_KEY"),
		VeoBaseURL:          getEnv("VEO_BASE_URL", "https://api.kie.ai/api/v1"),
		MarketBaseURL:       getEnv("MARKET_BASE_URL", "https://api.kie.ai/api/v1"),
		ProviderHTTPTimeout: time.Second * time.Duration(getEnvInt("PROVIDER_HTTP_TIMEOUT_SECONDS", 60)),
		ArtifactTimeout:     time.Second * time.Duration(getEnvInt("ARTIFACT_TIMEOUT_SECONDS", 120)),
		PricingCacheTTL:     time.Second * time.Duration(getEnvInt("PRICING_CACHE_TTL_SECONDS", 60)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Generation requests block for the variant's full poll budget, so
		// the write deadline must exceed the largest budget in the catalog
		// (storyboard: 3600s).
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 3900)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.KieAPIKey == "" {
		return nil, fmt.Errorf("KIE_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
