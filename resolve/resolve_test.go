package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValue(t *testing.T) {
	row := map[string]interface{}{
		"name": "ada",
		"address": map[string]interface{}{
			"city": "london",
		},
		"tags": []interface{}{"a", "b"},
	}

	tests := []struct {
		name   string
		path   string
		want   interface{}
		wantOK bool
	}{
		{name: "top level", path: "name", want: "ada", wantOK: true},
		{name: "nested", path: "address.city", want: "london", wantOK: true},
		{name: "slice index", path: "tags.1", want: "b", wantOK: true},
		{name: "missing key", path: "address.zip", wantOK: false},
		{name: "through scalar", path: "name.first", wantOK: false},
		{name: "bad index", path: "tags.9", wantOK: false},
		{name: "empty path", path: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PathValue(row, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathValueNonObjectRow(t *testing.T) {
	// Non-object entries are permitted and resolve to nothing.
	_, ok := PathValue("just a string", "name")
	assert.False(t, ok)
	_, ok = PathValue(nil, "name")
	assert.False(t, ok)
}

func TestResolvePath(t *testing.T) {
	r := New(nil)
	row := map[string]interface{}{"email": "  A@B.C  "}

	got := r.Resolve(row, Mapping{Column: "email", Source: SourcePath, Spec: "email", Transform: TransformTrim}, nil)
	assert.Equal(t, "A@B.C", got)

	got = r.Resolve(row, Mapping{Column: "x", Source: SourcePath, Spec: "missing"}, nil)
	assert.Nil(t, got)
}

func TestResolveExpression(t *testing.T) {
	r := New(nil)
	row := map[string]interface{}{"first": "ada", "last": "lovelace"}
	env := map[string]interface{}{"suffix": "!"}

	got := r.Resolve(row, Mapping{Source: SourceExpr, Spec: `first + " " + last + suffix`}, env)
	assert.Equal(t, "ada lovelace!", got)

	// Row fields shadow ambient context.
	got = r.Resolve(row, Mapping{Source: SourceExpr, Spec: "first"}, map[string]interface{}{"first": "other"})
	assert.Equal(t, "ada", got)

	// The whole row stays reachable as "row".
	got = r.Resolve(row, Mapping{Source: SourceExpr, Spec: `row.last`}, nil)
	assert.Equal(t, "lovelace", got)

	// Evaluation failure yields nil, never an error.
	got = r.Resolve(row, Mapping{Source: SourceExpr, Spec: `1 +`}, nil)
	assert.Nil(t, got)
	got = r.Resolve(row, Mapping{Source: SourceExpr, Spec: `missing.deeply.nested`}, nil)
	assert.Nil(t, got)
}

func TestResolveTyped(t *testing.T) {
	store := NewStateStore()
	store.Write("flow", "batch.id", int64(42))
	r := New(store)

	got := r.Resolve(nil, Mapping{Source: SourceTyped, TypedKind: "str", Spec: "fixed"}, nil)
	assert.Equal(t, "fixed", got)

	got = r.Resolve(nil, Mapping{Source: SourceTyped, TypedKind: "num", Spec: "7"}, nil)
	assert.Equal(t, int64(7), got)

	got = r.Resolve(nil, Mapping{Source: SourceTyped, TypedKind: "bool", Spec: "TRUE"}, nil)
	assert.Equal(t, true, got)

	got = r.Resolve(nil, Mapping{Source: SourceTyped, TypedKind: "flow", Spec: "batch.id"}, nil)
	assert.Equal(t, int64(42), got)

	got = r.Resolve(nil, Mapping{Source: SourceTyped, TypedKind: "flow", Spec: "missing"}, nil)
	assert.Nil(t, got)

	got = r.Resolve(map[string]interface{}{"n": 2}, Mapping{Source: SourceTyped, TypedKind: "expr", Spec: "n * 3"}, nil)
	assert.Equal(t, 6, got)
}

func TestStateStoreEnv(t *testing.T) {
	t.Setenv("ROWFORGE_TEST_VALUE", "hello")
	store := NewStateStore()

	v, ok := store.Resolve("env", "ROWFORGE_TEST_VALUE", nil)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok = store.Resolve("env", "ROWFORGE_TEST_MISSING_VALUE", nil)
	assert.False(t, ok)
}

func TestParseSourceKind(t *testing.T) {
	for in, want := range map[string]SourceKind{
		"":           SourcePath,
		"path":       SourcePath,
		"expr":       SourceExpr,
		"expression": SourceExpr,
		"typed":      SourceTyped,
	} {
		got, err := ParseSourceKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSourceKind("jsonpath")
	assert.Error(t, err)
}
