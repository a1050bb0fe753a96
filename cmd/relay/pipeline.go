// Package main wires the core components (selector, pii, attachment,
// ratelimit, upstream, outcome, store) into a runnable relay binary: a
// chi envelope-ingestion router and a gin admin router, per SPEC_FULL.md §0.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/relay-go/attachment"
	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/event"
	serrors "github.com/getsentry/relay-go/infrastructure/errors"
	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/infrastructure/metrics"
	"github.com/getsentry/relay-go/outcome"
	"github.com/getsentry/relay-go/pii"
	"github.com/getsentry/relay-go/ratelimit"
	"github.com/getsentry/relay-go/upstream"
)

// Forwarder accepts an accepted envelope for delivery upstream or (in
// "processing" mode) onto a message bus. Per spec.md's Non-goals ("it does
// not store events; it transforms and forwards them") and the outcome
// package's own Producer interface, no concrete wire client is owned by
// this module — a deployment wires its own.
type Forwarder interface {
	Forward(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error
}

// ForwarderFunc adapts a plain function to Forwarder.
type ForwarderFunc func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error

// Forward implements Forwarder.
func (f ForwarderFunc) Forward(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error {
	return f(ctx, scoping, env)
}

// Pipeline is the sequential envelope pipeline of spec.md §2's control
// flow: project-state fetch -> rate-limit enforce -> PII scrub -> forward.
type Pipeline struct {
	Projects *upstream.ProjectCache
	Checker  ratelimit.Checker
	Outcomes outcome.Producer
	Forward  Forwarder
	Metrics  *metrics.Metrics
	Log      *logging.Logger
}

// HandleEnvelope runs one envelope through the pipeline, mutating env in
// place (dropped/flagged items per the rate-limit enforcer, redacted
// payloads per the PII processor/attachment scrubber), and returns the
// enforced RateLimits for the caller to surface as X-Sentry-Rate-Limits.
func (p *Pipeline) HandleEnvelope(ctx context.Context, projectID string, env *envelope.Envelope) (*ratelimit.RateLimits, error) {
	res := p.Projects.Get(ctx, projectID)
	if res.Err != nil {
		return nil, serrors.ExternalAPIError("project-state", res.Err)
	}
	if !res.Exists {
		return nil, serrors.Unauthorized("unknown project")
	}
	state := res.Value
	if state.Disabled {
		return nil, serrors.Forbidden("project disabled")
	}

	scoping := outcome.Scoping{ProjectID: projectID}
	if len(state.PublicKeys) > 0 {
		scoping.PublicKey = state.PublicKeys[0]
	}

	summary := ratelimit.Summarize(env, false)
	result, err := ratelimit.Enforce(env, summary, false, p.Checker)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrCodeRateLimitExceeded, "quota check failed", http.StatusInternalServerError, err)
	}

	if len(result.Removed) > 0 {
		for _, rec := range outcome.FromRemoved(scoping, env.Header.EventID, env.Header.RemoteAddr, result.Removed) {
			p.Outcomes.Track(rec)
			if p.Metrics != nil {
				p.Metrics.RecordRateLimitDrop(string(rec.Category), rec.Code)
			}
		}
	}

	if state.PiiConfig != nil {
		p.scrub(state.PiiConfig, env)
	}

	if len(env.Items) == 0 {
		return result.Limits, serrors.RateLimitExceeded(string(summary.EventCategory))
	}

	if err := p.Forward.Forward(ctx, scoping, env); err != nil {
		return result.Limits, serrors.Wrap(serrors.ErrCodeExternalAPI, "forward failed", http.StatusBadGateway, err)
	}

	now := time.Now()
	for _, item := range env.Items {
		qty := int64(1)
		if item.Type == envelope.ItemAttachment {
			qty = item.Length
			if qty < 1 {
				qty = 1
			}
		}
		p.Outcomes.Track(outcome.Record{
			Timestamp:  now,
			Scoping:    scoping,
			Outcome:    outcome.Accepted,
			EventID:    env.Header.EventID,
			RemoteAddr: env.Header.RemoteAddr,
			Category:   item.Category(),
			Quantity:   qty,
		})
	}

	return result.Limits, nil
}

// scrub runs the structured PII processor over event/transaction/security
// item payloads and the binary attachment scrubber over attachment item
// payloads, per spec.md §2's control-flow description.
func (p *Pipeline) scrub(cfg *pii.CompiledConfig, env *envelope.Envelope) {
	processor := pii.NewProcessor(cfg)
	for _, item := range env.Items {
		switch item.Type {
		case envelope.ItemEvent, envelope.ItemTransaction, envelope.ItemSecurity, envelope.ItemRawSecurity:
			node, err := event.FromJSON(item.Payload)
			if err != nil {
				if p.Log != nil {
					p.Log.Error(context.Background(), "pii: skipping malformed item payload", err, nil)
				}
				continue
			}
			processor.Process(node)
			out, err := event.ToJSON(node)
			if err != nil {
				if p.Log != nil {
					p.Log.Error(context.Background(), "pii: re-encoding scrubbed item failed", err, nil)
				}
				continue
			}
			item.Payload = out
			item.Length = int64(len(out))
		case envelope.ItemAttachment:
			attachment.Scrub(item.Payload, cfg)
		}
	}
}
