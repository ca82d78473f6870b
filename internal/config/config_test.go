package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"QUILLPOST_CONFIG", "PORT", "ENV", "LOG_LEVEL", "TRUST_PROXY", "STORE_DRIVER", "DATABASE_DSN",
	"MONGODB_URI", "MONGODB_DATABASE", "MIGRATE_ON_START", "JWT_SECRET", "JWT_EXPIRY",
	"JWT_ISSUER", "JWT_AUDIENCE", "SESSION_TTL", "SESSION_COOKIE", "SESSION_PURGE_INTERVAL",
	"AUTH_RATE_RPS", "AUTH_RATE_BURST", "CORS_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMySQL, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "qp_session", cfg.Session.CookieName)
	assert.Equal(t, 5.0, cfg.Limits.AuthRPS)
	assert.Equal(t, 10, cfg.Limits.AuthBurst)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.TrustProxy)
	assert.NotEmpty(t, cfg.JWT.Issuer)
	assert.NotEmpty(t, cfg.JWT.Audience)
}

func TestLoad_TrustProxy(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}

func TestValidate_RequiresIssuerAndAudience(t *testing.T) {
	cfg := Defaults()
	cfg.JWT.Audience = ""
	assert.ErrorContains(t, cfg.Validate(), "jwt.audience")

	cfg = Defaults()
	cfg.JWT.Issuer = ""
	assert.ErrorContains(t, cfg.Validate(), "jwt.issuer")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
port: "9000"
store:
  driver: postgres
  database_dsn: postgres://yaml
jwt:
  expiry: 2h
  audience: readers
session:
  ttl: 48h
`)
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("SESSION_TTL", "3d")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://env", cfg.Store.DatabaseDSN, "env wins over yaml")
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "readers", cfg.JWT.Audience)
	assert.Equal(t, 72*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUILLPOST_CONFIG", writeYAML(t, "store:\n  driver: memory\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config file")
}

func TestLoad_BadEnvValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_EXPIRY", "soon")
	t.Setenv("AUTH_RATE_BURST", "many")
	t.Setenv("MIGRATE_ON_START", "perhaps")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_EXPIRY")
	assert.Contains(t, err.Error(), "AUTH_RATE_BURST")
	assert.Contains(t, err.Error(), "MIGRATE_ON_START")
}

func TestLoad_ProductionSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr string
	}{
		{name: "dev secret", secret: "", wantErr: "JWT_SECRET must be set"},
		{name: "short secret", secret: "too-short", wantErr: "at least 32 bytes"},
		{name: "strong secret", secret: "0123456789abcdef0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENV", "production")
			t.Setenv("JWT_SECRET", tt.secret)

			cfg, err := Load("")
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, cfg.IsProduction())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := Defaults()
	cfg.Port = "0"
	cfg.LogLevel = "loud"
	cfg.Store.Driver = "sqlite"
	cfg.Session.TTL = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"port", "log_level", "store.driver", "session.ttl"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_MongoNeedsURI(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = DriverMongo
	cfg.Store.MongoURI = ""

	assert.ErrorContains(t, cfg.Validate(), "mongodb_uri")
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, d)

	d, err = parseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = parseDuration("xd")
	assert.Error(t, err)
}
