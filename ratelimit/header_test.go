package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/envelope"
)

func TestFormatHeaderEmpty(t *testing.T) {
	assert.Equal(t, "", NewRateLimits().FormatHeader())
	var nilLimits *RateLimits
	assert.Equal(t, "", nilLimits.FormatHeader())
}

func TestFormatHeaderEntry(t *testing.T) {
	lims := NewRateLimits()
	lims.Add(Limit{Category: envelope.CategoryError, RetryAfter: 60, Scope: ScopeProject, Reason: "rate_limited"})
	assert.Equal(t, "60:error:project:rate_limited", lims.FormatHeader())
}

func TestFormatHeaderNoReasonOmitsTrailingColon(t *testing.T) {
	lims := NewRateLimits()
	lims.Add(Limit{Category: envelope.CategoryAttachment, RetryAfter: 10, Scope: ScopeKey})
	assert.Equal(t, "10:attachment:key", lims.FormatHeader())
}

func TestParseHeaderSemicolonSeparatedCategories(t *testing.T) {
	parsed := ParseHeader("60:error;transaction:organization:rate_limited")

	l, ok := parsed.Get(envelope.CategoryError)
	require.True(t, ok)
	assert.Equal(t, 60, l.RetryAfter)
	assert.Equal(t, ScopeOrganization, l.Scope)
	assert.Equal(t, ReasonCode("rate_limited"), l.Reason)

	_, ok = parsed.Get(envelope.CategoryTransaction)
	assert.True(t, ok)
}

func TestParseHeaderNoCategoryAppliesToAll(t *testing.T) {
	parsed := ParseHeader("30::project")
	for _, cat := range allCategories {
		l, ok := parsed.Get(cat)
		require.True(t, ok, "category %s should be covered by a blanket limit", cat)
		assert.Equal(t, 30, l.RetryAfter)
	}
}

func TestParseHeaderMultipleEntries(t *testing.T) {
	parsed := ParseHeader("60:error:organization:rate_limited, 120:attachment:project")

	_, ok := parsed.Get(envelope.CategoryError)
	require.True(t, ok)

	l, ok := parsed.Get(envelope.CategoryAttachment)
	require.True(t, ok)
	assert.Equal(t, 120, l.RetryAfter)
	assert.Equal(t, ScopeProject, l.Scope)
	assert.Equal(t, ReasonCode(""), l.Reason)
}

func TestParseHeaderIgnoresMalformedEntry(t *testing.T) {
	parsed := ParseHeader("invalid, ,,,")
	assert.True(t, parsed.IsEmpty())
}
