package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "listing-sync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "listing_sync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "https://api.airtable.com/v0", cfg.RecordAPI.BaseURL)
		assert.Equal(t, 30, cfg.RecordAPI.TimeoutSeconds)
		assert.Equal(t, 5.0, cfg.RecordAPI.RequestsPerSecond)
		assert.False(t, cfg.RecordAPI.Configured())
		assert.Equal(t, 100, cfg.Sync.PageSize)
		assert.Equal(t, 4, cfg.Sync.PushWorkers)
		assert.Equal(t, 30*time.Second, cfg.Sync.RecordTimeout)
		assert.Equal(t, 5, cfg.Sync.RetryMaxAttempts)
		assert.False(t, cfg.Sync.AutoSyncEnabled)
		assert.Equal(t, "", cfg.Redis.Host)
	})

	t.Run("loads values from environment variables with SYNC prefix", func(t *testing.T) {
		t.Setenv("SYNC_APP_PORT", "9000")
		t.Setenv("SYNC_DATABASE_HOST", "testdb.local")
		t.Setenv("SYNC_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("SYNC_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("SYNC_RECORD_API_BASE_ID", "appXYZ")
		t.Setenv("SYNC_RECORD_API_API_TOKEN", "pat123")
		t.Setenv("SYNC_SYNC_AUTO_SYNC_ENABLED", "true")
		t.Setenv("SYNC_SYNC_PUSH_WORKERS", "8")
		t.Setenv("SYNC_SYNC_RECORD_TIMEOUT", "5s")
		t.Setenv("SYNC_REDIS_HOST", "cache.local")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.RecordAPI.Configured())
		assert.True(t, cfg.Sync.AutoSyncEnabled)
		assert.Equal(t, 8, cfg.Sync.PushWorkers)
		assert.Equal(t, 5*time.Second, cfg.Sync.RecordTimeout)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("SYNC_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SYNC_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects page size above the remote maximum", func(t *testing.T) {
		t.Setenv("SYNC_SYNC_PAGE_SIZE", "500")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.page_size")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		t.Setenv("SYNC_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("SYNC_APP_ENV", "production")
		t.Setenv("SYNC_AUTH_ADMIN_SECRET", "this-is-a-very-secure-admin-secret-32chars")
		t.Setenv("SYNC_AUTH_REQUIRE_NONCE", "true")
		t.Setenv("SYNC_DATABASE_PASSWORD", "secure-password")
		t.Setenv("SYNC_DATABASE_SSLMODE", "require")
		t.Setenv("SYNC_RECORD_API_BASE_ID", "appXYZ")
		t.Setenv("SYNC_RECORD_API_API_TOKEN", "pat123")
	}

	tests := []struct {
		name     string
		override map[string]string
		wantErr  string
	}{
		{"short admin secret", map[string]string{"SYNC_AUTH_ADMIN_SECRET": "short"}, "auth.admin_secret"},
		{"nonce not required", map[string]string{"SYNC_AUTH_REQUIRE_NONCE": "false"}, "auth.require_nonce"},
		{"ssl disabled", map[string]string{"SYNC_DATABASE_SSLMODE": "disable"}, "database.sslmode"},
		{"missing record api token", map[string]string{"SYNC_RECORD_API_API_TOKEN": ""}, "record_api"},
		{"full sql logging", map[string]string{"SYNC_TELEMETRY_DB_LOG_FULL_SQL": "true"}, "db_log_full_sql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			for k, v := range tt.override {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
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
		assert.Contains(t, dsn, "/testdb")
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
