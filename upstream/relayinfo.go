package upstream

import (
	"context"

	"github.com/getsentry/relay-go/infrastructure/logging"
)

// RelayInfo is a downstream relay's registration record, as resolved from
// either the legacy public_keys map or the current relays map (spec.md
// §4.6 "Compatibility format").
type RelayInfo struct {
	PublicKey string
	Internal  bool
}

// RelayCache is the relay-info cache of spec.md §4.6, keyed by relay id.
type RelayCache struct {
	*Cache[RelayInfo]
}

// NewRelayCache wires client against the generic coalescing Cache.
func NewRelayCache(cfg Config, client *AortaClient, log *logging.Logger) *RelayCache {
	fetch := func(ctx context.Context, ids []string) (map[string]*RelayInfo, error) {
		return client.FetchRelayInfo(ctx, ids)
	}
	return &RelayCache{Cache: New[RelayInfo]("relay-info", cfg, fetch, log)}
}
