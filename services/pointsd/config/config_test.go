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
	path := filepath.Join(t.TempDir(), "pointsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: " s3cret "
custody:
  path: /tmp/custody.db
rate_limits:
  Partner:
    rate_per_second: 5
    burst: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8088", cfg.ListenAddress)
	require.Equal(t, "points.toml", cfg.ProtocolPath)
	require.Equal(t, "s3cret", cfg.Auth.HMACSecret)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "info", cfg.Log.Level)
	require.Contains(t, cfg.RateLimits, "partner")
	require.False(t, cfg.IndexerEnabled())
}

func TestLoadReadsSecretFromEnv(t *testing.T) {
	t.Setenv("POINTSD_TEST_SECRET", "from-env")
	path := writeConfig(t, `
auth:
  hmac_secret_env: POINTSD_TEST_SECRET
custody:
  path: custody.db
indexer:
  sqlite_path: events.db
  export_dir: exports
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.HMACSecret)
	require.True(t, cfg.IndexerEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing secret":  "custody:\n  path: c.db\n",
		"missing custody": "auth:\n  disabled: true\n",
		"export no sink":  "auth:\n  disabled: true\ncustody:\n  path: c.db\nindexer:\n  export_dir: out\n",
		"bad rate limit":  "auth:\n  disabled: true\ncustody:\n  path: c.db\nrate_limits:\n  stake:\n    rate_per_second: 0\n    burst: 1\n",
		"unknown field":   "auth:\n  disabled: true\ncustody:\n  path: c.db\nbogus: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadRequiresPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}
