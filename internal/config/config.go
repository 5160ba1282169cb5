package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Store    StoreConfig
	Auth     AuthConfig
	Issuer   IssuerConfig
	Signing  SigningConfig
	Identity IdentityConfig
	Mail     MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the database file used by the sqlite store driver.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// StoreConfig selects the entry store backend and its maintenance schedule.
type StoreConfig struct {
	Driver        string
	SweepSchedule string
}

// AuthConfig defines PIN challenge parameters.
type AuthConfig struct {
	PinLength    int
	PinTTL       time.Duration
	MaxAttempts  int
	CodeCooldown time.Duration
	BcryptCost   int
}

// IssuerConfig defines token issuance parameters.
type IssuerConfig struct {
	URL             string
	WorkspaceID     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SigningConfig carries the Ed25519 key material used to sign access tokens.
//
// SigningKey is a base64 Ed25519 seed or private key. VerifyKeys lists extra
// public keys that stay valid during rotation, as kid=base64 pairs.
type SigningConfig struct {
	SigningKey   string            `env:"ISSUER_SIGNING_KEY"`
	SigningKeyID string            `env:"ISSUER_SIGNING_KEY_ID"`
	VerifyKeys   map[string]string `env:"ISSUER_VERIFY_KEYS" envKeyValSeparator:"="`
}

// Identity sources.
const (
	IdentitySourceStatic   = "static"
	IdentitySourcePostgres = "postgres"
)

// IdentityConfig selects where workspace members are looked up.
type IdentityConfig struct {
	Source    string
	AllowList string
}

// MailConfig holds outbound email settings. An empty Host logs codes instead.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// DefaultAllowList is the workspace membership used when none is configured.
const DefaultAllowList = "a1b2c3d4-e5f6-4789-a012-bcdef0123456=alice@example.com;" +
	"b2c3d4e5-f6a7-4890-b123-cdef01234567=bob@example.com;" +
	"c3d4e5f6-a7b8-4901-c234-def012345678=charlie@example.com;" +
	"d4e5f6a7-b8c9-4012-d345-ef0123456789=diana@example.com"

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var signing SigningConfig
	if err := env.Parse(&signing); err != nil {
		return nil, fmt.Errorf("parse signing env: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "pin-issuer"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            getEnv("POSTGRES_DSN", os.Getenv("DATABASE_URL")),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "pin-issuer.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			SweepSchedule: getEnv("STORE_SWEEP_SCHEDULE", "*/5 * * * *"),
		},
		Auth: AuthConfig{
			PinLength:    getEnvAsInt("AUTH_PIN_LENGTH", 6),
			PinTTL:       getEnvAsDuration("AUTH_PIN_TTL", 10*time.Minute),
			MaxAttempts:  getEnvAsInt("AUTH_MAX_ATTEMPTS", 5),
			CodeCooldown: getEnvAsDuration("AUTH_CODE_COOLDOWN", 30*time.Second),
			BcryptCost:   getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Issuer: IssuerConfig{
			URL:             getEnv("ISSUER", "http://localhost:3000"),
			WorkspaceID:     getEnv("ISSUER_WORKSPACE_ID", "borderland"),
			AccessTokenTTL:  getEnvAsDuration("ISSUER_ACCESS_TOKEN_TTL", 30*24*time.Hour),
			RefreshTokenTTL: getEnvAsDuration("ISSUER_REFRESH_TOKEN_TTL", 365*24*time.Hour),
		},
		Signing: signing,
		Identity: IdentityConfig{
			Source:    strings.ToLower(getEnv("IDENTITY_SOURCE", IdentitySourceStatic)),
			AllowList: getEnv("IDENTITY_ALLOWLIST", DefaultAllowList),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("MAIL_FROM", "noreply@example.com"),
			Subject:  getEnv("MAIL_SUBJECT", "Your sign-in code"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the issuer cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for store driver %q", c.Store.Driver)
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.Store.Driver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Identity.Source {
	case IdentitySourceStatic:
	case IdentitySourcePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for identity source %q", c.Identity.Source)
		}
	default:
		return fmt.Errorf("unknown IDENTITY_SOURCE %q", c.Identity.Source)
	}

	if c.Auth.PinLength < 4 || c.Auth.PinLength > 12 {
		return fmt.Errorf("AUTH_PIN_LENGTH must be between 4 and 12")
	}
	if c.Auth.PinTTL <= 0 {
		return fmt.Errorf("AUTH_PIN_TTL must be positive")
	}
	if c.Auth.MaxAttempts <= 0 {
		return fmt.Errorf("AUTH_MAX_ATTEMPTS must be positive")
	}
	if strings.TrimSpace(c.Issuer.URL) == "" {
		return fmt.Errorf("ISSUER is required")
	}
	if strings.TrimSpace(c.Issuer.WorkspaceID) == "" {
		return fmt.Errorf("ISSUER_WORKSPACE_ID is required")
	}
	if c.Issuer.AccessTokenTTL <= 0 || c.Issuer.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Signing.SigningKey == "" && !c.App.IsDevelopment() {
		return fmt.Errorf("ISSUER_SIGNING_KEY is required outside development")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs in a development environment.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
