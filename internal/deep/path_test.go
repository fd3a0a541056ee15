package deep

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNestedPath(t *testing.T) {
	obj := map[string]any{
		"author": map[string]any{"name": "ada"},
		"tags":   []any{"a", "b"},
	}

	v, ok := Get(obj, "author.name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	v, ok = Get(obj, "tags.1")
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = Get(obj, "author.email")
	assert.False(t, ok)
	_, ok = Get(obj, "tags.9")
	assert.False(t, ok)
}

func TestSetCopiesIntermediateMaps(t *testing.T) {
	inner := map[string]any{"name": "ada"}
	orig := map[string]any{"author": inner, "id": 1}

	out := Set(orig, "author.name", "grace")

	assert.Equal(t, "grace", out["author"].(map[string]any)["name"])
	assert.Equal(t, "ada", inner["name"])
	assert.Equal(t, "ada", orig["author"].(map[string]any)["name"])
}

func TestSetCreatesMissingBranches(t *testing.T) {
	out := Set(nil, "meta.flags.pinned", true)
	v, ok := Get(out, "meta.flags.pinned")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestCleanKeepsZero(t *testing.T) {
	out := Clean(map[string]any{
		"offset":       0,
		"sort":         "",
		"extendedView": false,
		"status":       nil,
		"limit":        25,
		"tags":         []any{},
	})
	assert.Equal(t, map[string]any{"offset": 0, "limit": 25}, out)
}

func TestEqualNormalizesNumbers(t *testing.T) {
	assert.True(t, Equal(5, float64(5)))
	assert.True(t, Equal(json.Number("7"), int64(7)))
	assert.False(t, Equal("5", 5))
	assert.True(t, Equal("abc", "abc"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(true, 1))
}

func TestIntID(t *testing.T) {
	n, ok := IntID("42")
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	n, ok = IntID(float64(7))
	require.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = IntID("abc")
	assert.False(t, ok)
	_, ok = IntID(map[string]any{})
	assert.False(t, ok)
}

func TestTypeGuards(t *testing.T) {
	assert.True(t, IsSequence([]any{1}))
	assert.False(t, IsSequence(map[string]any{}))
	assert.True(t, IsRecord(map[string]any{}))
	assert.False(t, IsRecord([]any{}))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), ParseValue("3"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Nil(t, ParseValue("null"))
	assert.Equal(t, "plain text", ParseValue("plain text"))
	assert.Equal(t, map[string]any{"a": "b"}, ParseValue(`{"a":"b"}`))
}
