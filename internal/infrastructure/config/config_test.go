package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// clearEnv unsets the INV_ variables the tests touch; t.Setenv restores them
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"INV_APP_NAME", "INV_APP_ENV", "INV_APP_PORT",
		"INV_DATABASE_HOST", "INV_DATABASE_PORT", "INV_DATABASE_USER",
		"INV_DATABASE_PASSWORD", "INV_DATABASE_DBNAME", "INV_DATABASE_SSLMODE",
		"INV_DATABASE_MAX_OPEN_CONNS", "INV_DATABASE_MAX_IDLE_CONNS",
		"INV_JWT_SECRET", "INV_CRYPTO_SECRET_KEY",
		"INV_NUMBERING_BACKEND", "INV_NUMBERING_LOCK_WAIT", "INV_NUMBERING_LOCK_TTL",
		"INV_NUMBERING_MAX_AUTO_RETRIES", "INV_NUMBERING_ALLOW_IN_MEMORY_FALLBACK",
		"INV_HTTP_ALLOW_TENANT_HEADER", "INV_TELEMETRY_SAMPLING_RATIO",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "invoiced-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "invoiced", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, "redis", cfg.Numbering.Backend)
		assert.Equal(t, 5*time.Second, cfg.Numbering.LockWait)
		assert.Equal(t, 30*time.Second, cfg.Numbering.LockTTL)
		assert.Equal(t, 3, cfg.Numbering.MaxAutoRetries)
		assert.False(t, cfg.Numbering.AllowInMemoryFallback)

		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.False(t, cfg.Telemetry.DBTracing)
	})

	t.Run("loads values from environment variables with INV prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_APP_NAME", "test-app")
		t.Setenv("INV_DATABASE_HOST", "testdb.local")
		t.Setenv("INV_DATABASE_PORT", "5433")
		t.Setenv("INV_NUMBERING_BACKEND", "memory")
		t.Setenv("INV_NUMBERING_LOCK_WAIT", "8s")
		t.Setenv("INV_NUMBERING_MAX_AUTO_RETRIES", "5")
		t.Setenv("INV_CRYPTO_SECRET_KEY", validSecretKey)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "memory", cfg.Numbering.Backend)
		assert.Equal(t, 8*time.Second, cfg.Numbering.LockWait)
		assert.Equal(t, 5, cfg.Numbering.MaxAutoRetries)

		key, err := cfg.Crypto.Key()
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("INV_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects lock wait outside 3s to 10s", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_NUMBERING_LOCK_WAIT", "1s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numbering.lock_wait")
	})

	t.Run("rejects lock ttl not exceeding lock wait", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_NUMBERING_LOCK_WAIT", "10s")
		t.Setenv("INV_NUMBERING_LOCK_TTL", "10s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numbering.lock_ttl")
	})

	t.Run("rejects unknown numbering backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_NUMBERING_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numbering.backend")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.sampling_ratio")
	})

	t.Run("rejects malformed secret key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_CRYPTO_SECRET_KEY", "abcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INV_APP_ENV", "production")
		t.Setenv("INV_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("INV_DATABASE_PASSWORD", "secure-password")
		t.Setenv("INV_DATABASE_SSLMODE", "require")
		t.Setenv("INV_CRYPTO_SECRET_KEY", validSecretKey)
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"requires jwt.secret", map[string]string{"INV_JWT_SECRET": ""}, "jwt.secret is required"},
		{"requires long jwt.secret", map[string]string{"INV_JWT_SECRET": "short"}, "at least 32 characters"},
		{"requires database.password", map[string]string{"INV_DATABASE_PASSWORD": ""}, "database.password is required"},
		{"requires ssl", map[string]string{"INV_DATABASE_SSLMODE": "disable"}, "database.sslmode"},
		{"requires secret key", map[string]string{"INV_CRYPTO_SECRET_KEY": ""}, "crypto.secret_key is required"},
		{"forbids tenant header", map[string]string{"INV_HTTP_ALLOW_TENANT_HEADER": "true"}, "allow_tenant_header"},
		{"forbids memory locks", map[string]string{"INV_NUMBERING_BACKEND": "memory"}, "redis backend"},
		{"forbids memory fallback", map[string]string{"INV_NUMBERING_ALLOW_IN_MEMORY_FALLBACK": "true"}, "redis backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			for k, v := range tt.env {
				if v == "" {
					os.Unsetenv(k)
					continue
				}
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
