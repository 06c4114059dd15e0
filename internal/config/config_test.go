package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

const testEncryptionKey = "6368616e676520746869732070617373776f726420746f206120736563726574" // 32 bytes hex

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_ENCRYPTION_KEY", testEncryptionKey)
	t.Setenv("SESSION_TOKEN_SECRET", "test-secret-key-that-is-at-least-32-characters-long")
	t.Setenv("PROVIDER_CLIENT_ID", "test-client-id")
	t.Setenv("PROVIDER_CLIENT_SECRET", "test-client-secret")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	ctx := context.Background()
	cfg, err := Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected Server.Port to be '8080', got '%s'", cfg.Server.Port)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected Server.Host to be '0.0.0.0', got '%s'", cfg.Server.Host)
	}

	if cfg.Postgres.Host != "localhost" {
		t.Errorf("Expected Postgres.Host to be 'localhost', got '%s'", cfg.Postgres.Host)
	}

	if cfg.Aggregation.StrainStaleness.Duration != 5*time.Minute {
		t.Errorf("Expected Aggregation.StrainStaleness to be 5m, got %v", cfg.Aggregation.StrainStaleness.Duration)
	}

	if cfg.Aggregation.SleepStaleness.Duration != time.Hour {
		t.Errorf("Expected Aggregation.SleepStaleness to be 1h, got %v", cfg.Aggregation.SleepStaleness.Duration)
	}

	if cfg.Aggregation.Timezone != "UTC" {
		t.Errorf("Expected Aggregation.Timezone to be 'UTC', got '%s'", cfg.Aggregation.Timezone)
	}

	if cfg.Session.RefreshInterval.Duration != 15*time.Minute {
		t.Errorf("Expected Session.RefreshInterval to be 15m, got %v", cfg.Session.RefreshInterval.Duration)
	}

	if cfg.Security.RateLimitRequests != 10 {
		t.Errorf("Expected Security.RateLimitRequests to be 10, got %d", cfg.Security.RateLimitRequests)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be 'development', got '%s'", cfg.Env)
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		t.Error("Expected CORS.AllowedOrigins to have at least one value")
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "postgres.example.com")
	t.Setenv("AGG_STRAIN_STALENESS", "30s")
	t.Setenv("SESSION_TOKEN_EXPIRY", "1d")
	t.Setenv("ENV", "production")

	ctx := context.Background()
	cfg, err := Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected Server.Port to be '9090', got '%s'", cfg.Server.Port)
	}

	if cfg.Postgres.Host != "postgres.example.com" {
		t.Errorf("Expected Postgres.Host to be 'postgres.example.com', got '%s'", cfg.Postgres.Host)
	}

	if cfg.Aggregation.StrainStaleness.Duration != 30*time.Second {
		t.Errorf("Expected Aggregation.StrainStaleness to be 30s, got %v", cfg.Aggregation.StrainStaleness.Duration)
	}

	if cfg.Session.TokenExpiry.Duration != 24*time.Hour {
		t.Errorf("Expected Session.TokenExpiry to be 1d, got %v", cfg.Session.TokenExpiry.Duration)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be 'production', got '%s'", cfg.Env)
	}
}

func TestLoadWithoutEncryptionKey(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("VAULT_ENCRYPTION_KEY")

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error when VAULT_ENCRYPTION_KEY is not set")
	}
}

func TestLoadWithShortEncryptionKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VAULT_ENCRYPTION_KEY", "abcdef")

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error when VAULT_ENCRYPTION_KEY is too short")
	}
	if err != nil && !strings.Contains(err.Error(), "32 bytes") {
		t.Errorf("Expected key-length error, got: %v", err)
	}
}

func TestLoadWithNonHexEncryptionKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VAULT_ENCRYPTION_KEY", strings.Repeat("zz", 32))

	ctx := context.Background()
	_, err := Load(ctx)
	if err == nil {
		t.Error("Expected error when VAULT_ENCRYPTION_KEY is not hex")
	}
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "test_user",
		Password: "test_password",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	dsn := pg.DSN()
	expected := "host=localhost port=5432 user=test_user password=test_password dbname=test_db sslmode=disable"
	if dsn != expected {
		t.Errorf("Expected DSN to be '%s', got '%s'", expected, dsn)
	}
}

func TestVaultKey(t *testing.T) {
	v := VaultConfig{EncryptionKey: testEncryptionKey}
	key, err := v.Key()
	if err != nil {
		t.Fatalf("Expected valid key, got error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("Expected 32-byte key, got %d bytes", len(key))
	}
}
