package infra

import (
	"testing"
	"time"

	"vidforge/server/internal/catalog"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("KIE_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("VEO_BASE_URL", "")
	t.Setenv("MARKET_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want default 8080", cfg.Port)
	}
	if cfg.VeoBaseURL != "https://api.kie.ai/api/v1" {
		t.Fatalf("VeoBaseURL = %q", cfg.VeoBaseURL)
	}
	if cfg.HTTPWriteTimeout != 3900*time.Second {
		t.Fatalf("HTTPWriteTimeout = %v, want 3900s for long-poll requests", cfg.HTTPWriteTimeout)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
}

func TestDefaultWriteTimeoutCoversPollBudgets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("KIE_API_KEY", "test-key")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	var largest time.Duration
	var largestVariant string
	for _, m := range catalog.NewRegistry().Models() {
		for _, v := range m.Variants {
			budget := v.PollInterval * time.Duration(v.PollMaxAttempts)
			if budget > largest {
				largest = budget
				largestVariant = m.ID + "/" + v.ID
			}
		}
	}
	if cfg.HTTPWriteTimeout <= largest {
		t.Fatalf("default write timeout %v does not cover the %v poll budget of %s",
			cfg.HTTPWriteTimeout, largest, largestVariant)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KIE_API_KEY", "test-key")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without DATABASE_URL")
	}
}

func TestLoadConfigRequiresProviderKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("KIE_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without KIE_API_KEY")
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("KIE_API_KEY", "test-key")
	t.Setenv("MARKET_BASE_URL", "https://mirror.example.com/api/v1")
	t.Setenv("PRICING_CACHE_TTL_SECONDS", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MarketBaseURL != "https://mirror.example.com/api/v1" {
		t.Fatalf("MarketBaseURL = %q", cfg.MarketBaseURL)
	}
	if cfg.PricingCacheTTL != 5*time.Second {
		t.Fatalf("PricingCacheTTL = %v", cfg.PricingCacheTTL)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Fatalf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
}
