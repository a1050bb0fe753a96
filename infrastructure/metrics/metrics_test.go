package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("relay-test", reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordCacheHitMissIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("relay-test", reg)

	m.RecordCacheHit("project_state")
	m.RecordCacheMiss("project_state")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("project_state")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("project_state")))
}

func TestRecordRateLimitDrop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("relay-test", reg)

	m.RecordRateLimitDrop("attachment", "rate_limited")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitDropsTotal.WithLabelValues("attachment", "rate_limited")))
}

func TestRecordScrubRuleFire(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("relay-test", reg)

	m.RecordScrubRuleFire("@email")
	m.RecordScrubRuleFire("@email")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ScrubRuleFiresTotal.WithLabelValues("@email")))
}

func TestUpdateUptimeReflectsElapsed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("relay-test", reg)

	start := time.Now().Add(-5 * time.Second)
	m.UpdateUptime(start)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.ServiceUptime), 5.0)
}

func TestEnabledDefaultsOnOutsideProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("METRICS_ENABLED", "")
	assert.True(t, Enabled())
}

func TestEnabledDefaultsOffInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("METRICS_ENABLED", "")
	assert.False(t, Enabled())
}

func TestEnabledExplicitOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("METRICS_ENABLED", "true")
	assert.True(t, Enabled())
}
