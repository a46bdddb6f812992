package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "DAO LLC Governance Portal (v0.1)", cfg.Auth.AppID)
	assert.Equal(t, 60*time.Second, cfg.Auth.NonceTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.NonceRetention)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, "https://rest-testnet.onflow.org", cfg.Flow.AccessNode)
	assert.Equal(t, DriverMemory, cfg.Storage.Nonces)
	assert.Equal(t, EventsGoChannel, cfg.Events.Driver)
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLOWAUTH_AUTH_NONCE_TTL", "30s")
	t.Setenv("FLOWAUTH_STORAGE_NONCES", "Redis")
	t.Setenv("FLOWAUTH_FLOW_SERVICE_ACCOUNT_KEY_INDEX", "2")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Auth.NonceTTL)
	assert.Equal(t, DriverRedis, cfg.Storage.Nonces)
	assert.Equal(t, 2, cfg.Flow.ServiceAccount.KeyIndex)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowauth.yaml")
	content := []byte("auth:\n  app_id: Test App\nsession:\n  ttl: 15m\nstorage:\n  documents: sqlite\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "Test App", cfg.Auth.AppID)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, DriverSQLite, cfg.Storage.Documents)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"empty app id", "auth.app_id", " "},
		{"zero nonce ttl", "auth.nonce_ttl", "0s"},
		{"unknown nonce driver", "storage.nonces", "mongo"},
		{"redis documents", "storage.documents", "redis"},
		{"postgres without dsn", "storage.nonces", "postgres"},
		{"unknown events driver", "events.driver", "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTrustedProxies(t *testing.T) {
	v := New()
	v.Set("server.trusted_proxies", []string{"10.0.0.1", "192.168.0.0/16"})
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.Server.TrustedProxies)

	v = New()
	v.Set("server.trusted_proxies", []string{"10.0.0.1", "proxy.internal"})
	_, err = Load(v, "")
	assert.Error(t, err)
}
