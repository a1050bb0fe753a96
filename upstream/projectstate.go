package upstream

import (
	"context"
	"time"

	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/pii"
)

// ProjectState is the per-project configuration delivered by aorta's
// projectconfigs endpoint: the compiled PII policy the pipeline scrubs
// events with, the raw scrubbing config it was compiled from (kept for the
// admin surface), and the client-IP blocklist (SPEC_FULL.md §3 recovered
// field). BlockedIPs is decoded and stored; no code in this module filters
// requests by it.
type ProjectState struct {
	ProjectID     string
	PublicKeys    []string
	PiiConfig     *pii.CompiledConfig
	Scrubbing     *pii.DataScrubbingConfig
	BlockedIPs    []string
	Disabled      bool
	LastFetchedAt time.Time
}

// ProjectCache is the project-state cache of spec.md §4.6, keyed by
// project id.
type ProjectCache struct {
	*Cache[ProjectState]
}

// NewProjectCache wires client against the generic coalescing Cache.
func NewProjectCache(cfg Config, client *AortaClient, log *logging.Logger) *ProjectCache {
	fetch := func(ctx context.Context, ids []string) (map[string]*ProjectState, error) {
		return client.FetchProjectConfigs(ctx, ids)
	}
	return &ProjectCache{Cache: New[ProjectState]("project-state", cfg, fetch, log)}
}
