package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/ratelimit"
)

func TestFromRemovedBuildsOneRecordPerItem(t *testing.T) {
	scoping := Scoping{OrganizationID: "org1", ProjectID: "proj1"}
	removed := []ratelimit.Removed{
		{Category: envelope.CategoryAttachment, Quantity: 1024, AppliedLimit: ratelimit.Limit{Reason: "rate_limited"}},
		{Category: envelope.CategoryError, Quantity: 1, AppliedLimit: ratelimit.Limit{Reason: "quota_exceeded"}},
	}

	records := FromRemoved(scoping, "event-1", "1.2.3.4", removed)
	require.Len(t, records, 2)

	assert.Equal(t, RateLimited, records[0].Outcome)
	assert.Equal(t, "rate_limited", records[0].Code)
	assert.Equal(t, int64(1024), records[0].Quantity)
	assert.Equal(t, "event-1", records[0].EventID)
	assert.Equal(t, scoping, records[0].Scoping)

	assert.Equal(t, "quota_exceeded", records[1].Code)
}

func TestProducerFuncTracksRecord(t *testing.T) {
	var got Record
	p := ProducerFunc(func(r Record) { got = r })
	p.Track(Record{Outcome: Accepted})
	assert.Equal(t, Accepted, got.Outcome)
}

func TestNoopProducerDiscardsSilently(t *testing.T) {
	assert.NotPanics(t, func() { NoopProducer.Track(Record{Outcome: Abuse}) })
}
