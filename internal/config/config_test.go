package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "radar.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Snapshot.TTL)
	assert.Equal(t, 20, cfg.Screen.PoolSize)
	assert.Equal(t, 5, cfg.Screen.MAWorkers)
	assert.Equal(t, 10, cfg.Enrich.Workers)
	assert.Equal(t, 3*time.Second, cfg.Enrich.TaskTimeout)
	assert.Equal(t, 15*time.Second, cfg.Enrich.BatchTimeout)
	assert.Equal(t, "14:30", cfg.Tail.SwitchAt)
	assert.Equal(t, 50000, cfg.Sentiment.CacheMaxSize)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	p := writeFile(t, `
snapshot:
  ttl: 90s
screen:
  top_n: 8
  ma_tolerance: 0.03
enrich:
  batch_timeout: 20s
sentiment:
  reasoner:
    api_key: file-key
smtp:
  server: smtp.example.com
  user: bot@example.com
  to: me@example.com
`)
	t.Setenv(envDeepSeekAPIKey, "env-key")
	t.Setenv(envEnrichConcurrency, "4")
	t.Setenv(envAPIMaxConcurrent, "99")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Snapshot.TTL)
	assert.Equal(t, 8, cfg.Screen.TopN)
	assert.InDelta(t, 0.03, cfg.Screen.MATolerance, 1e-9)
	assert.Equal(t, 20*time.Second, cfg.Enrich.BatchTimeout)
	assert.Equal(t, "env-key", cfg.Sentiment.Reasoner.APIKey)
	assert.True(t, cfg.Sentiment.Reasoner.Enabled())
	assert.Equal(t, 4, cfg.Enrich.Workers)
	assert.Equal(t, maxConcurrentCap, cfg.API.MaxConcurrent)
	assert.Equal(t, "bot@example.com", cfg.SMTP.From)
	assert.True(t, cfg.SMTP.Enabled())
	// 未覆盖的键保持默认
	assert.Equal(t, 2.0, cfg.Screen.ChangePctMin)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"inverted range": "screen:\n  change_pct_min: 6\n  change_pct_max: 5\n",
		"bad switch":     "tail:\n  switch_at: \"25:99\"\n",
		"zero workers":   "enrich:\n  workers: 0\n",
		"bad yaml":       "screen: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14, h)
	assert.Equal(t, 30, m)
}
