package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONBuildsTaggedTree(t *testing.T) {
	node, err := FromJSON([]byte(`{"foo":"bar","n":3,"arr":[1,2],"nested":{"k":"v"}}`))
	require.NoError(t, err)

	assert.Equal(t, TypeObject, node.Type)
	assert.Equal(t, "bar", node.Object.Get("foo").Str)
	assert.Equal(t, float64(3), node.Object.Get("n").Num)
	assert.Equal(t, TypeArray, node.Object.Get("arr").Type)
	assert.Len(t, node.Object.Get("arr").Array, 2)
	assert.Equal(t, "v", node.Object.Get("nested").Object.Get("k").Str)
}

func TestFromJSONQueryStringPairList(t *testing.T) {
	node, err := FromJSON([]byte(`{"request":{"query_string":[["foo","bar"],["password","hello"]]}}`))
	require.NoError(t, err)

	qs := node.Object.Get("request").Object.Get("query_string")
	require.Len(t, qs.Array, 2)
	assert.Equal(t, "password", qs.Array[1].Array[0].Str)
}

func TestToJSONRoundTripsScalars(t *testing.T) {
	node, err := FromJSON([]byte(`{"a":true,"b":null,"c":1.5,"d":"x"}`))
	require.NoError(t, err)

	out, err := ToJSON(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true,"b":null,"c":1.5,"d":"x"}`, string(out))
}

func TestToJSONReflectsInPlaceRedaction(t *testing.T) {
	node, err := FromJSON([]byte(`{"password":"hello"}`))
	require.NoError(t, err)

	node.Object.Get("password").Str = "[filtered]"

	out, err := ToJSON(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"[filtered]"}`, string(out))
}
