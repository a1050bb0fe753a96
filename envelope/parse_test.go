package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLengthPrefixedItem(t *testing.T) {
	raw := `{"event_id":"abc123"}` + "\n" +
		`{"type":"event","length":13,"content_type":"application/json"}` + "\n" +
		`{"message":1}` + "\n"

	env, err := Parse(strings.NewReader(raw), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", env.Header.EventID)
	require.Len(t, env.Items, 1)
	assert.Equal(t, ItemEvent, env.Items[0].Type)
	assert.Equal(t, `{"message":1}`, string(env.Items[0].Payload))
	assert.True(t, env.Items[0].CreatesEvent)
}

func TestParseLengthInferredItem(t *testing.T) {
	raw := `{"event_id":"abc123"}` + "\n" +
		`{"type":"attachment","content_type":"text/plain","filename":"a.txt"}` + "\n" +
		`hello world` + "\n"

	env, err := Parse(strings.NewReader(raw), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, env.Items, 1)
	assert.Equal(t, "hello world", string(env.Items[0].Payload))
	assert.False(t, env.Items[0].CreatesEvent)
	assert.Equal(t, CategoryAttachment, env.Items[0].Category())
}

func TestParseMinidumpCreatesEvent(t *testing.T) {
	raw := `{"event_id":"abc123"}` + "\n" +
		`{"type":"attachment","attachment_type":"event.minidump","length":4}` + "\n" +
		"\x00\x01\x02\x03\n"

	env, err := Parse(strings.NewReader(raw), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, env.Items, 1)
	assert.True(t, env.Items[0].CreatesEvent)
	assert.True(t, env.Items[0].RequiresEvent() == false)
}

func TestParseBadHeaderRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("not json\n"), "127.0.0.1")
	require.Error(t, err)
	var badErr *ErrBadEnvelope
	assert.ErrorAs(t, err, &badErr)
}
