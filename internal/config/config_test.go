package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("TOKEN_TTL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.DatabaseDriver != DriverPostgres {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("expected 1h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.TxMaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.TxMaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.DatabaseDriver != DriverPGX {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m, got %s", cfg.TokenTTL)
	}
	if cfg.TxMaxAttempts != 1 {
		t.Fatalf("expected attempts clamped to 1, got %d", cfg.TxMaxAttempts)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
