package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/outcome"
	"github.com/getsentry/relay-go/pii"
	"github.com/getsentry/relay-go/ratelimit"
	"github.com/getsentry/relay-go/store"
	"github.com/getsentry/relay-go/upstream"
)

func testProjectCache(t *testing.T, state upstream.ProjectState) *upstream.ProjectCache {
	t.Helper()
	fetch := func(ctx context.Context, ids []string) (map[string]*upstream.ProjectState, error) {
		out := make(map[string]*upstream.ProjectState, len(ids))
		for _, id := range ids {
			s := state
			s.ProjectID = id
			out[id] = &s
		}
		return out, nil
	}
	cfg := upstream.Config{BatchInterval: time.Millisecond, HTTPMaxRetryInterval: time.Second}
	return &upstream.ProjectCache{Cache: upstream.New[upstream.ProjectState]("test-project", cfg, fetch, nil)}
}

func TestPipelineScrubsAndForwardsEnvelope(t *testing.T) {
	compiled, err := pii.Compile(&pii.Config{
		Applications: map[string][]string{"$string": {"@email"}},
	})
	require.NoError(t, err)

	cache := testProjectCache(t, upstream.ProjectState{PiiConfig: compiled})

	var forwarded *envelope.Envelope
	pipeline := &Pipeline{
		Projects: cache,
		Checker:  store.NewMemQuota(nil),
		Outcomes: outcome.NoopProducer,
		Forward: ForwarderFunc(func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error {
			forwarded = env
			return nil
		}),
		Log: logging.NewFromEnv("test"),
	}

	env := envelope.New(envelope.Header{EventID: "abc123"})
	env.Add(&envelope.Item{
		Type:         envelope.ItemEvent,
		ContentType:  "application/json",
		CreatesEvent: true,
		Payload:      []byte(`{"message":"contact jane.doe@example.com for help"}`),
	})

	limits, err := pipeline.HandleEnvelope(context.Background(), "1", env)
	require.NoError(t, err)
	require.True(t, limits.IsEmpty())
	require.NotNil(t, forwarded)
	require.Len(t, forwarded.Items, 1)
	require.NotContains(t, string(forwarded.Items[0].Payload), "jane.doe@example.com")
	require.True(t, strings.Contains(string(forwarded.Items[0].Payload), "[email]"))
}

func TestPipelineRejectsUnknownProject(t *testing.T) {
	fetch := func(ctx context.Context, ids []string) (map[string]*upstream.ProjectState, error) {
		return map[string]*upstream.ProjectState{}, nil
	}
	cfg := upstream.Config{BatchInterval: time.Millisecond, HTTPMaxRetryInterval: time.Second, MissTTL: time.Minute}
	cache := &upstream.ProjectCache{Cache: upstream.New[upstream.ProjectState]("test-project-missing", cfg, fetch, nil)}

	pipeline := &Pipeline{
		Projects: cache,
		Checker:  store.NewMemQuota(nil),
		Outcomes: outcome.NoopProducer,
		Forward:  ForwarderFunc(func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error { return nil }),
		Log:      logging.NewFromEnv("test"),
	}

	env := envelope.New(envelope.Header{EventID: "abc123"})
	_, err := pipeline.HandleEnvelope(context.Background(), "missing", env)
	require.Error(t, err)
}

func TestPipelineDropsAttachmentOverQuota(t *testing.T) {
	cache := testProjectCache(t, upstream.ProjectState{})

	checker := ratelimit.CheckerFunc(func(category envelope.DataCategory, quantity int64) (*ratelimit.RateLimits, error) {
		out := ratelimit.NewRateLimits()
		if category == envelope.CategoryAttachment {
			out.Add(ratelimit.Limit{Category: envelope.CategoryAttachment, RetryAfter: 60, Scope: ratelimit.ScopeProject, Reason: "quota"})
		}
		return out, nil
	})

	var dropped []outcome.Record
	pipeline := &Pipeline{
		Projects: cache,
		Checker:  checker,
		Outcomes: outcome.ProducerFunc(func(r outcome.Record) { dropped = append(dropped, r) }),
		Forward:  ForwarderFunc(func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error { return nil }),
		Log:      logging.NewFromEnv("test"),
	}

	env := envelope.New(envelope.Header{EventID: "abc123"})
	env.Add(&envelope.Item{Type: envelope.ItemEvent, CreatesEvent: true, Payload: []byte(`{}`)})
	env.Add(&envelope.Item{Type: envelope.ItemAttachment, Length: 10, Payload: []byte("0123456789")})

	limits, err := pipeline.HandleEnvelope(context.Background(), "1", env)
	require.NoError(t, err)
	require.False(t, limits.IsEmpty())
	require.Len(t, env.Items, 1)

	var rateLimited []outcome.Record
	for _, r := range dropped {
		if r.Outcome == outcome.RateLimited {
			rateLimited = append(rateLimited, r)
		}
	}
	require.Len(t, rateLimited, 1)
	require.Equal(t, envelope.CategoryAttachment, rateLimited[0].Category)
}
