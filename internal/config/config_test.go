package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "TEMPLATE_SEARCH_MONTHS", "RECURRING_INTERVAL", "CORS_ORIGINS", "REDIS_URL", "AMQP_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.TemplateSearchMonths != 6 {
		t.Errorf("TemplateSearchMonths = %d, want 6", cfg.TemplateSearchMonths)
	}
	if cfg.RecurringInterval != time.Hour {
		t.Errorf("RecurringInterval = %s, want 1h", cfg.RecurringInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TEMPLATE_SEARCH_MONTHS", "12")
	t.Setenv("RECURRING_INTERVAL", "15m")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://app.example.com")
	t.Setenv("JWT_EXPIRES_IN", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TemplateSearchMonths != 12 {
		t.Errorf("TemplateSearchMonths = %d, want 12", cfg.TemplateSearchMonths)
	}
	if cfg.RecurringInterval != 15*time.Minute {
		t.Errorf("RecurringInterval = %s, want 15m", cfg.RecurringInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.JWTExpirationDur != 24*time.Hour {
		t.Errorf("JWTExpirationDur = %s, want fallback 24h", cfg.JWTExpirationDur)
	}
}

func TestLoad_InvalidSearchMonths(t *testing.T) {
	t.Setenv("TEMPLATE_SEARCH_MONTHS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TemplateSearchMonths != 6 {
		t.Errorf("TemplateSearchMonths = %d, want fallback 6", cfg.TemplateSearchMonths)
	}
}
