// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillpost/quillpost-go/internal/crypto"
)

// DevJWTSecret is the placeholder secret used outside production.
const DevJWTSecret = "dev-secret-change-in-production"

// MinJWTSecretLen is the shortest secret accepted in production.
const MinJWTSecretLen = 32

// Store drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	Store   StoreConfig   `yaml:"store"`
	JWT     JWTConfig     `yaml:"jwt"`
	Session SessionConfig `yaml:"session"`
	Limits  LimitConfig   `yaml:"limits"`

	CORSOrigins []string `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver         string `yaml:"driver"`
	DatabaseDSN    string `yaml:"database_dsn"`
	MongoURI       string `yaml:"mongodb_uri"`
	MongoDatabase  string `yaml:"mongodb_database"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Expiry   time.Duration `yaml:"expiry"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
}

type SessionConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
	// PurgeInterval is how often expired sessions are deleted.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// LimitConfig throttles the credential endpoints per client IP.
type LimitConfig struct {
	AuthRPS   float64 `yaml:"auth_rps"`
	AuthBurst int     `yaml:"auth_burst"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Port:     "8080",
		Env:      "development",
		LogLevel: "info",
		Store: StoreConfig{
			Driver:        DriverMySQL,
			DatabaseDSN:   "root:password@tcp(127.0.0.1:3306)/quillpost?parseTime=true",
			MongoURI:      "mongodb://127.0.0.1:27017",
			MongoDatabase: "quillpost",
		},
		JWT: JWTConfig{
			Secret:   DevJWTSecret,
			Expiry:   24 * time.Hour,
			Issuer:   crypto.DefaultIssuer,
			Audience: crypto.DefaultAudience,
		},
		Session: SessionConfig{
			TTL:           7 * 24 * time.Hour,
			CookieName:    "qp_session",
			PurgeInterval: time.Hour,
		},
		Limits: LimitConfig{
			AuthRPS:   5,
			AuthBurst: 10,
		},
		CORSOrigins: []string{"*"},
	}
}

// Load builds the configuration. An empty configPath falls back to
// $QUILLPOST_CONFIG and then ./config.yaml; a missing file is not an error
// unless it was named explicitly.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	path, explicit := discoverConfigFile(configPath)
	if path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs with production safeguards.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func discoverConfigFile(configPath string) (string, bool) {
	if configPath != "" {
		return configPath, true
	}
	if p := os.Getenv("QUILLPOST_CONFIG"); p != "" {
		return p, true
	}
	return "config.yaml", false
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	errs = append(errs, boolEnv("TRUST_PROXY", &cfg.TrustProxy))

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DatabaseDSN = getEnv("DATABASE_DSN", cfg.Store.DatabaseDSN)
	cfg.Store.MongoURI = getEnv("MONGODB_URI", cfg.Store.MongoURI)
	cfg.Store.MongoDatabase = getEnv("MONGODB_DATABASE", cfg.Store.MongoDatabase)
	errs = append(errs, boolEnv("MIGRATE_ON_START", &cfg.Store.MigrateOnStart))

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.Audience = getEnv("JWT_AUDIENCE", cfg.JWT.Audience)
	errs = append(errs, durationEnv("JWT_EXPIRY", &cfg.JWT.Expiry))

	errs = append(errs, durationEnv("SESSION_TTL", &cfg.Session.TTL))
	errs = append(errs, durationEnv("SESSION_PURGE_INTERVAL", &cfg.Session.PurgeInterval))
	cfg.Session.CookieName = getEnv("SESSION_COOKIE", cfg.Session.CookieName)

	if v := os.Getenv("AUTH_RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTH_RATE_RPS: %w", err))
		}
		cfg.Limits.AuthRPS = f
	}
	if v := os.Getenv("AUTH_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTH_RATE_BURST: %w", err))
		}
		cfg.Limits.AuthBurst = n
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	return errors.Join(errs...)
}

func boolEnv(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// durationEnv accepts Go durations ("90m") and whole days ("7d").
func durationEnv(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %q", c.Port))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	switch c.Store.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Store.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("store.database_dsn is required for driver %q", c.Store.Driver))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongodb_uri and store.mongodb_database are required for driver \"mongo\""))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be mysql, postgres, mongo or memory, got %q", c.Store.Driver))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.IsProduction() {
		if c.JWT.Secret == DevJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production environment"))
		} else if len(c.JWT.Secret) < MinJWTSecretLen {
			errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes in production", MinJWTSecretLen))
		}
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		errs = append(errs, errors.New("jwt.issuer and jwt.audience are required"))
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, fmt.Errorf("jwt.expiry must be positive, got %s", c.JWT.Expiry))
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	if c.Session.PurgeInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.purge_interval must be positive, got %s", c.Session.PurgeInterval))
	}

	if c.Limits.AuthRPS <= 0 || c.Limits.AuthBurst <= 0 {
		errs = append(errs, errors.New("limits.auth_rps and limits.auth_burst must be positive"))
	}

	return errors.Join(errs...)
}
