package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icrypto "github.com/getsentry/relay-go/infrastructure/crypto"
)

func newTestIdentity(t *testing.T) *icrypto.RelayIdentity {
	t.Helper()
	id, err := icrypto.DeriveRelayIdentity(make([]byte, 32), "relay-under-test")
	require.NoError(t, err)
	return id
}

func TestFetchRelayInfoCurrentShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Sentry-Relay-Signature"))
		assert.Equal(t, "relay-under-test", r.Header.Get("X-Sentry-Relay-Id"))
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"relays": map[string]any{
				"r1": map[string]any{"public_key": "pk1", "internal": true},
				"r2": nil,
			},
		})
	}))
	defer srv.Close()

	client, err := NewAortaClient(srv.URL, "relay-under-test", newTestIdentity(t))
	require.NoError(t, err)

	out, err := client.FetchRelayInfo(context.TODO(), []string{"r1", "r2"})
	require.NoError(t, err)
	require.Contains(t, out, "r1")
	assert.Equal(t, "pk1", out["r1"].PublicKey)
	assert.True(t, out["r1"].Internal)
	require.Contains(t, out, "r2")
	assert.Nil(t, out["r2"])
}

func TestFetchRelayInfoLegacyShapePromoted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"public_keys": map[string]any{"r1": "legacy-pk"},
		})
	}))
	defer srv.Close()

	client, err := NewAortaClient(srv.URL, "relay-under-test", newTestIdentity(t))
	require.NoError(t, err)

	out, err := client.FetchRelayInfo(context.TODO(), []string{"r1"})
	require.NoError(t, err)
	require.Contains(t, out, "r1")
	assert.Equal(t, "legacy-pk", out["r1"].PublicKey)
	assert.False(t, out["r1"].Internal, "legacy promotion always sets internal=false")
}

func TestFetchProjectConfigsCompilesPiiConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"configs": map[string]any{
				"p1": map[string]any{
					"public_keys": []string{"pub1"},
					"datascrubbing_settings": map[string]any{
						"scrub_data":     true,
						"scrub_defaults": true,
					},
				},
				"p2": nil,
			},
		})
	}))
	defer srv.Close()

	client, err := NewAortaClient(srv.URL, "relay-under-test", newTestIdentity(t))
	require.NoError(t, err)

	out, err := client.FetchProjectConfigs(context.TODO(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Contains(t, out, "p1")
	assert.NotNil(t, out["p1"].PiiConfig)
	assert.NotContains(t, out, "p2", "an explicitly null project config is not returned as an entry")
}
