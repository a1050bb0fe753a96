package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/ratelimit"
)

func TestMemQuotaAllowsWithinBudget(t *testing.T) {
	q := NewMemQuota([]QuotaRule{
		{Category: envelope.CategoryError, Limit: 10, Window: time.Minute, RetryAfter: 60, Reason: "rate_limited"},
	})

	lims, err := q.Check(envelope.CategoryError, 1)
	require.NoError(t, err)
	assert.True(t, lims.IsEmpty())
}

func TestMemQuotaBlocksOverBudget(t *testing.T) {
	q := NewMemQuota([]QuotaRule{
		{Category: envelope.CategoryAttachment, Limit: 1, Burst: 1, Window: time.Minute, RetryAfter: 30, Reason: "rate_limited"},
	})

	_, err := q.Check(envelope.CategoryAttachment, 1)
	require.NoError(t, err)

	lims, err := q.Check(envelope.CategoryAttachment, 1)
	require.NoError(t, err)
	l, ok := lims.Get(envelope.CategoryAttachment)
	require.True(t, ok)
	assert.Equal(t, 30, l.RetryAfter)
	assert.Equal(t, ratelimit.ScopeProject, l.Scope)
}

func TestMemQuotaUnconfiguredCategoryUnlimited(t *testing.T) {
	q := NewMemQuota(nil)
	lims, err := q.Check(envelope.CategorySession, 1000)
	require.NoError(t, err)
	assert.True(t, lims.IsEmpty())
}
