package config

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.AccessTokenTTL.Minutes() != 15 {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL.Hours() != 336 {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTokenTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOBBOARD_ADDR", ":9999")
	t.Setenv("JOBBOARD_ACCESS_TOKEN_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.AccessTokenTTL.Hours() != 1 {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
}

func TestSigningKey(t *testing.T) {
	cfg := Config{}
	if _, err := cfg.SigningKey(); err == nil {
		t.Fatal("expected error for missing secret")
	}

	cfg.JWTSecret = base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := cfg.SigningKey(); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("expected length error, got %v", err)
	}

	raw := strings.Repeat("k", 64)
	cfg.JWTSecret = base64.StdEncoding.EncodeToString([]byte(raw))
	key, err := cfg.SigningKey()
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if string(key) != raw {
		t.Fatal("decoded key mismatch")
	}
}
