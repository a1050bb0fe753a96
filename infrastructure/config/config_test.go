package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndRequiredOverrides(t *testing.T) {
	t.Setenv("RELAY_ENV", "testing")
	t.Setenv("RELAY_UPSTREAM_URL", "https://upstream.example")
	t.Setenv("RELAY_ID", "11111111-1111-1111-1111-111111111111")
	t.Setenv("RELAY_CONFIG_FILE", "does-not-exist.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Testing, cfg.Env)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.SnapshotExpiry)
	assert.True(t, cfg.IsTesting())
}

func TestLoadRejectsMissingUpstreamURL(t *testing.T) {
	t.Setenv("RELAY_ENV", "testing")
	t.Setenv("RELAY_UPSTREAM_URL", "")
	t.Setenv("RELAY_ID", "some-id")
	t.Setenv("RELAY_CONFIG_FILE", "does-not-exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("RELAY_ENV", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverridesWinOverDefaults(t *testing.T) {
	t.Setenv("RELAY_ENV", "development")
	t.Setenv("RELAY_UPSTREAM_URL", "https://upstream.example")
	t.Setenv("RELAY_ID", "relay-1")
	t.Setenv("RELAY_CONFIG_FILE", "does-not-exist.yaml")
	t.Setenv("RELAY_BATCH_SIZE", "10")
	t.Setenv("RELAY_MAX_EVENT_SIZE", "2MB")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, int64(2*1024*1024), cfg.MaxEventSize)
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"1024":  1024,
		"1KB":   1024,
		"1MiB":  1024 * 1024,
		"2GB":   2 * 1024 * 1024 * 1024,
		"100b":  100,
	}
	for raw, want := range cases {
		got, err := ParseByteSize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseByteSizeRejectsInvalid(t *testing.T) {
	_, err := ParseByteSize("")
	assert.Error(t, err)
	_, err = ParseByteSize("-5MB")
	assert.Error(t, err)
}
