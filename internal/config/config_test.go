package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shopmunim")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OTP_TTL", "90")
	t.Setenv("OTP_MAX_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OTPTTL != 90*time.Second {
		t.Fatalf("expected bare seconds to parse, got %s", cfg.OTPTTL)
	}
	if cfg.OTPMaxPerMinute != 5 {
		t.Fatalf("expected fallback 5, got %d", cfg.OTPMaxPerMinute)
	}
	if cfg.AccessTokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTokenTTL)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shopmunim")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing REDIS_URL to fail")
	}
}

func TestLoadDatabaseOptions(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shopmunim")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_MAX_CONNS", "12")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBMaxConns != 12 || cfg.AutoMigrate {
		t.Fatalf("unexpected database options %+v", cfg)
	}
}
