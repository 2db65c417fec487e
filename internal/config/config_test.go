package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsFileAndEnv(t *testing.T) {
	p := writeConfig(t, `
http:
  addr: ":8080"
database:
  driver: memory
auth:
  jwtKey: from-file
  sessionTTL: 24h
verification:
  maxAttempts: 3
`)
	t.Setenv("AUTH_JWTKEY", "from-env")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "memory", cfg.Database.Driver)
	require.Equal(t, "from-env", cfg.Auth.JWTKey)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, 3, cfg.Verification.MaxAttempts)

	// untouched keys keep defaults
	require.Equal(t, 15*time.Minute, cfg.Verification.TTL)
	require.Equal(t, time.Hour, cfg.Auth.SessionCleanupInterval)
	require.Equal(t, 10*time.Second, cfg.HTTP.ReadHeaderTimeout)
	require.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	require.True(t, cfg.Database.Migrate)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("AUTH_JWTKEY", "k")
	t.Setenv("DATABASE_DSN", "postgres://x@db/x")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "postgres://x@db/x", cfg.Database.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "database:\n  driver: memory\n"))
	require.ErrorContains(t, err, "auth.jwtKey")
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := func() *Config {
		return &Config{
			Database:     Database{Driver: "memory"},
			Auth:         Auth{JWTKey: "k", SessionTTL: time.Hour, LoginWindow: time.Minute, LoginMaxFails: 5, LoginBlockFor: time.Minute},
			Verification: Verification{TTL: time.Minute, MaxAttempts: 5},
		}
	}
	require.NoError(t, ok().Validate())

	c := ok()
	c.Database.Driver = "sqlite"
	require.ErrorContains(t, c.Validate(), "database.driver")

	c = ok()
	c.Database = Database{Driver: "postgres"}
	require.ErrorContains(t, c.Validate(), "database.dsn")

	c = ok()
	c.Auth.SessionTTL = 0
	c.Verification.MaxAttempts = 0
	err := c.Validate()
	require.ErrorContains(t, err, "sessionTTL")
	require.ErrorContains(t, err, "maxAttempts")

	c = ok()
	c.GRPC.TLSCert = "cert.pem"
	require.ErrorContains(t, c.Validate(), "tlsKey")

	c = ok()
	c.Mail.BrevoAPIKey = "key"
	require.ErrorContains(t, c.Validate(), "senderEmail")
}
