package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/envelope"
)

func attachmentItem(length int64, createsEvent bool, attachType string) *envelope.Item {
	return &envelope.Item{Type: envelope.ItemAttachment, Length: length, CreatesEvent: createsEvent, AttachmentType: attachType}
}

func TestEnforceRateLimitedMinidump(t *testing.T) {
	env := envelope.New(envelope.Header{EventID: "abc"})
	env.Add(attachmentItem(1024, true, "event.minidump"))
	env.Add(attachmentItem(256, false, ""))

	check := CheckerFunc(func(cat envelope.DataCategory, qty int64) (*RateLimits, error) {
		if cat == envelope.CategoryAttachment {
			lims := NewRateLimits()
			lims.Add(Limit{Category: envelope.CategoryAttachment, RetryAfter: 60, Reason: "rate_limited"})
			return lims, nil
		}
		return NewRateLimits(), nil
	})

	summary := Summarize(env, false)
	require.True(t, summary.HasEventCategory, "the minidump creates the event, so the event category (error) is known")

	result, err := Enforce(env, summary, false, check)
	require.NoError(t, err)

	require.Len(t, env.Items, 1, "plain attachment removed, minidump retained")
	assert.True(t, env.Items[0].RateLimited)
	assert.Equal(t, "event.minidump", env.Items[0].AttachmentType)
	require.Len(t, result.Removed, 1)
	assert.Equal(t, envelope.CategoryAttachment, result.Removed[0].Category)

	header := result.Limits.FormatHeader()
	assert.Contains(t, header, "attachment")
}

func TestEnforceEventLimitDropsDependents(t *testing.T) {
	env := envelope.New(envelope.Header{EventID: "abc"})
	env.Add(&envelope.Item{Type: envelope.ItemEvent, CreatesEvent: true})
	env.Add(attachmentItem(10, false, ""))

	check := CheckerFunc(func(cat envelope.DataCategory, qty int64) (*RateLimits, error) {
		lims := NewRateLimits()
		if cat == envelope.CategoryError {
			lims.Add(Limit{Category: envelope.CategoryError, RetryAfter: 30, Reason: "rate_limited"})
		}
		return lims, nil
	})

	summary := Summarize(env, false)
	result, err := Enforce(env, summary, false, check)
	require.NoError(t, err)
	assert.Empty(t, env.Items, "both the event and its dependent attachment must be dropped")
	assert.Len(t, result.Removed, 2)
}

func TestHeaderRoundTrip(t *testing.T) {
	lims := NewRateLimits()
	lims.Add(Limit{Category: envelope.CategoryAttachment, RetryAfter: 60, Reason: "rate_limited"})
	header := lims.FormatHeader()

	parsed := ParseHeader(header)
	l, ok := parsed.Get(envelope.CategoryAttachment)
	require.True(t, ok)
	assert.Equal(t, 60, l.RetryAfter)
}
