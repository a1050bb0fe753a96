package attachment

import (
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/pii"
)

func compileBinary(t *testing.T, ruleID string) *pii.CompiledConfig {
	t.Helper()
	cfg := &pii.Config{Applications: map[string][]string{"$binary": {ruleID}}}
	compiled, err := pii.Compile(cfg)
	require.NoError(t, err)
	return compiled
}

func TestScrubUTF8IP(t *testing.T) {
	buf := []byte("before 127.0.0.1 after")
	Scrub(buf, compileBinary(t, "@ip"))
	assert.Equal(t, "before [ip]xxxxx after", string(buf))
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return out
}

func decodeUTF16LEBytes(buf []byte) string {
	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}

func TestScrubUTF16LEIPHash(t *testing.T) {
	buf := encodeUTF16LE("before 127.0.0.1 after")
	orig := len(buf)
	Scrub(buf, compileBinary(t, "@ip:hash"))
	assert.Equal(t, orig, len(buf), "length must be preserved")
	assert.Equal(t, "before AE12FE3B5 after", decodeUTF16LEBytes(buf))
}
