package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/getsentry/relay-go/infrastructure/cache"
	icrypto "github.com/getsentry/relay-go/infrastructure/crypto"
	"github.com/getsentry/relay-go/infrastructure/httputil"
	"github.com/getsentry/relay-go/infrastructure/ratelimit"
	"github.com/getsentry/relay-go/pii"
)

// compiledConfigTTL bounds how long a compiled PII config is memoized by the
// raw scrubbing settings it was built from. Compilation is pure, so this is
// far longer than any project-state TTL — it only needs to outlast a single
// batch of aorta fetches that happen to share a fleet-wide default config.
const compiledConfigTTL = 10 * time.Minute

// httpDoer is satisfied by both *http.Client and *ratelimit.RateLimitedClient.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AortaClient is the signed HTTP client for the two aorta endpoints the
// relay consumes (spec.md §6). Every request carries X-Sentry-Relay-Id and
// an Ed25519 signature over the canonical JSON body.
type AortaClient struct {
	http          httpDoer
	baseURL       string
	relayID       string
	identity      *icrypto.RelayIdentity
	compiledCache *cache.TTLCache
}

// NewAortaClient builds a client against baseURL, signing every request as
// relayID using identity. Outbound requests are throttled by a
// infrastructure/ratelimit.RateLimitedClient so a project-config or
// relay-info refresh storm can't overrun the upstream aorta service.
func NewAortaClient(baseURL, relayID string, identity *icrypto.RelayIdentity) (*AortaClient, error) {
	client, normalized, err := httputil.NewClientWithBaseURL(httputil.ClientConfig{BaseURL: baseURL}, httputil.DefaultClientDefaults())
	if err != nil {
		return nil, fmt.Errorf("new aorta client: %w", err)
	}
	limited := ratelimit.NewRateLimitedClient(client, ratelimit.DefaultConfig())
	return &AortaClient{
		http:          limited,
		baseURL:       normalized,
		relayID:       relayID,
		identity:      identity,
		compiledCache: cache.NewTTLCache(compiledConfigTTL),
	}, nil
}

func (c *AortaClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(encoded)))
	req.Header.Set("X-Sentry-Relay-Id", c.relayID)
	if c.identity != nil {
		req.Header.Set("X-Sentry-Relay-Signature", c.identity.SignRequestBody(encoded))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("aorta %s: transient upstream status %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("aorta %s: status %d", path, resp.StatusCode)
	}
	return data, nil
}

// projectConfigsRequest/Wire mirror the POST /api/0/relays/projectconfigs/
// request and response bodies of spec.md §6.
type projectConfigsRequest struct {
	Projects []string `json:"projects"`
}

type projectConfigsResponse struct {
	Configs map[string]*projectStateWire `json:"configs"`
}

type projectStateWire struct {
	Disabled       bool              `json:"disabled"`
	PublicKeys     []string          `json:"public_keys"`
	BlockedIPs     []string          `json:"blocked_ips"`
	DataScrubbing  *dataScrubbingWire `json:"datascrubbing_settings"`
}

type dataScrubbingWire struct {
	ScrubData        bool     `json:"scrub_data"`
	ScrubDefaults    bool     `json:"scrub_defaults"`
	ScrubIPAddresses bool     `json:"scrub_ip_addresses"`
	SensitiveFields  []string `json:"sensitive_fields"`
	ExcludeFields    []string `json:"exclude_fields"`
}

// FetchProjectConfigs implements the Fetcher contract for ProjectCache.
func (c *AortaClient) FetchProjectConfigs(ctx context.Context, ids []string) (map[string]*ProjectState, error) {
	data, err := c.post(ctx, "/api/0/relays/projectconfigs/", projectConfigsRequest{Projects: ids})
	if err != nil {
		return nil, err
	}

	var resp projectConfigsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode projectconfigs response: %w", err)
	}

	out := make(map[string]*ProjectState, len(resp.Configs))
	for id, wire := range resp.Configs {
		if wire == nil {
			continue // project explicitly absent: caller treats as Absent entry
		}
		state := &ProjectState{
			ProjectID:  id,
			PublicKeys: wire.PublicKeys,
			BlockedIPs: wire.BlockedIPs,
			Disabled:   wire.Disabled,
		}
		if wire.DataScrubbing != nil {
			scrub := pii.DataScrubbingConfig{
				ScrubData:        wire.DataScrubbing.ScrubData,
				ScrubDefaults:    wire.DataScrubbing.ScrubDefaults,
				ScrubIPAddresses: wire.DataScrubbing.ScrubIPAddresses,
				SensitiveFields:  wire.DataScrubbing.SensitiveFields,
				ExcludeFields:    wire.DataScrubbing.ExcludeFields,
			}
			state.Scrubbing = &scrub
			if piiCfg := pii.ToPiiConfig(scrub); piiCfg != nil {
				compiled, err := c.compileCached(ctx, scrub, piiCfg)
				if err == nil {
					state.PiiConfig = compiled
				}
				// a rule that fails to resolve or compile is skipped and
				// logged by Compile itself per spec.md §7 ("PII config"
				// error kind); a non-nil err here means something more
				// fundamental broke (e.g. a malformed selector), and the
				// project falls back to no PII scrubbing rather than a
				// stale one.
			}
		}
		out[id] = state
	}
	return out, nil
}

// compileCached memoizes pii.Compile by the content of scrub: fleets
// typically share one or two default data-scrubbing configs across many
// projects, and compiling the selector/regex set is pure work that doesn't
// need repeating on every aorta batch fetch that happens to include them.
func (c *AortaClient) compileCached(ctx context.Context, scrub pii.DataScrubbingConfig, piiCfg *pii.Config) (*pii.CompiledConfig, error) {
	key := scrubbingCacheKey(scrub)
	if cached, ok := c.compiledCache.Get(ctx, key); ok {
		return cached.(*pii.CompiledConfig), nil
	}
	compiled, err := pii.Compile(piiCfg)
	if err != nil {
		return nil, err
	}
	c.compiledCache.Set(ctx, key, compiled)
	return compiled, nil
}

// scrubbingCacheKey builds a deterministic key from a DataScrubbingConfig's
// fields, independent of the wire order of its string slices.
func scrubbingCacheKey(scrub pii.DataScrubbingConfig) string {
	sensitive := append([]string(nil), scrub.SensitiveFields...)
	exclude := append([]string(nil), scrub.ExcludeFields...)
	sort.Strings(sensitive)
	sort.Strings(exclude)

	var b strings.Builder
	b.WriteString(strconv.FormatBool(scrub.ScrubData))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(scrub.ScrubDefaults))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(scrub.ScrubIPAddresses))
	b.WriteByte('|')
	b.WriteString(strings.Join(sensitive, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(exclude, ","))
	return b.String()
}

// FetchRelayInfo implements the Fetcher contract for RelayCache. It probes
// the response for the current `relays` key before falling back to the
// legacy `public_keys` key (spec.md §4.6 "Compatibility format"), using
// gjson so neither shape needs to be committed to up front.
func (c *AortaClient) FetchRelayInfo(ctx context.Context, ids []string) (map[string]*RelayInfo, error) {
	reqBody := struct {
		RelayIDs []string `json:"relay_ids"`
	}{RelayIDs: ids}

	data, err := c.post(ctx, "/api/0/relays/publickeys/", reqBody)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode publickeys response: invalid json")
	}

	root := gjson.ParseBytes(data)
	out := make(map[string]*RelayInfo, len(ids))

	relays := root.Get("relays")
	if relays.Exists() && len(relays.Map()) > 0 {
		relays.ForEach(func(key, value gjson.Result) bool {
			if !value.Exists() || value.Type == gjson.Null {
				out[key.String()] = nil
				return true
			}
			out[key.String()] = &RelayInfo{
				PublicKey: value.Get("public_key").String(),
				Internal:  value.Get("internal").Bool(),
			}
			return true
		})
		return out, nil
	}

	legacy := root.Get("public_keys")
	legacy.ForEach(func(key, value gjson.Result) bool {
		if !value.Exists() || value.Type == gjson.Null {
			out[key.String()] = nil
			return true
		}
		out[key.String()] = &RelayInfo{PublicKey: value.String(), Internal: false}
		return true
	})
	return out, nil
}
