package config

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server      ServerConfig      `env:",prefix=SERVER_"`
	Postgres    PostgresConfig    `env:",prefix=POSTGRES_"`
	Redis       RedisConfig       `env:",prefix=REDIS_"`
	Provider    ProviderConfig    `env:",prefix=PROVIDER_"`
	Vault       VaultConfig       `env:",prefix=VAULT_"`
	Aggregation AggregationConfig `env:",prefix=AGG_"`
	Session     SessionConfig     `env:",prefix=SESSION_"`
	Security    SecurityConfig    `env:",prefix="`
	CORS        CORSConfig        `env:",prefix=CORS_"`
	Env         string            `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=60s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=fitrank"`
	Password string `env:"PASSWORD,default=fitrank_password"`
	DBName   string `env:"DB,default=fitrank_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// ProviderConfig points at the external fitness API. TokenURL is the
// refresh-token grant endpoint; APIBaseURL is the root for resource reads.
type ProviderConfig struct {
	APIBaseURL   string   `env:"API_BASE_URL,default=https://api.prod.whoop.com/developer"`
	TokenURL     string   `env:"TOKEN_URL,default=https://api.prod.whoop.com/oauth/oauth2/token"`
	ClientID     string   `env:"CLIENT_ID,required"`
	ClientSecret string   `env:"CLIENT_SECRET,required"`
	Timeout      Duration `env:"TIMEOUT,default=10s"`
}

// VaultConfig carries the hex-encoded 256-bit key used to encrypt stored
// refresh tokens at rest.
type VaultConfig struct {
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
}

type AggregationConfig struct {
	StrainStaleness Duration `env:"STRAIN_STALENESS,default=5m"`
	SleepStaleness  Duration `env:"SLEEP_STALENESS,default=1h"`
	Timezone        string   `env:"TIMEZONE,default=UTC"`
	MaxConcurrency  int      `env:"MAX_CONCURRENCY,default=4"`
}

type SessionConfig struct {
	RefreshInterval Duration `env:"REFRESH_INTERVAL,default=15m"`
	TokenSecret     string   `env:"TOKEN_SECRET,required"`
	TokenExpiry     Duration `env:"TOKEN_EXPIRY,default=12h"`
}

type SecurityConfig struct {
	AdminKeyHash      string   `env:"ADMIN_KEY_HASH,default="`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization,X-Admin-Key"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Key decodes the hex-encoded encryption key into raw bytes.
func (v VaultConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(v.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// A half-configured vault must never come up: validate the key now.
	if _, err := config.Vault.Key(); err != nil {
		return nil, err
	}

	if len(config.Session.TokenSecret) < 32 {
		return nil, fmt.Errorf("SESSION_TOKEN_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
