package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTotality(t *testing.T) {
	// Every transform must accept nil, empty string, and odd values
	// without panicking.
	kinds := []TransformKind{
		TransformNone, TransformTrim, TransformUpper, TransformLower,
		TransformNullIfBlank, TransformBool01, TransformNumber, TransformText,
	}
	inputs := []interface{}{nil, "", "  x  ", 0, 1, 3.5, true, false, []interface{}{"a"}, map[string]interface{}{}}

	for _, kind := range kinds {
		for _, in := range inputs {
			assert.NotPanics(t, func() { Apply(kind, in) }, "%s(%v)", kind, in)
		}
	}
}

func TestApplyStringTransforms(t *testing.T) {
	assert.Nil(t, Apply(TransformTrim, nil))
	assert.Equal(t, "abc", Apply(TransformTrim, "  abc  "))
	assert.Equal(t, "42", Apply(TransformTrim, 42))

	assert.Nil(t, Apply(TransformUpper, nil))
	assert.Equal(t, "ABC", Apply(TransformUpper, "abc"))

	assert.Nil(t, Apply(TransformLower, nil))
	assert.Equal(t, "abc", Apply(TransformLower, "ABC"))

	assert.Nil(t, Apply(TransformText, nil))
	assert.Equal(t, "3.5", Apply(TransformText, 3.5))
	assert.Equal(t, "true", Apply(TransformText, true))
}

func TestApplyNullIfBlank(t *testing.T) {
	assert.Nil(t, Apply(TransformNullIfBlank, nil))
	assert.Nil(t, Apply(TransformNullIfBlank, ""))
	assert.Nil(t, Apply(TransformNullIfBlank, "   "))
	assert.Nil(t, Apply(TransformNullIfBlank, "NA"))
	assert.Nil(t, Apply(TransformNullIfBlank, "na"))
	assert.Nil(t, Apply(TransformNullIfBlank, "N/A"))
	assert.Nil(t, Apply(TransformNullIfBlank, " n/a "))
	assert.Equal(t, "value", Apply(TransformNullIfBlank, "value"))
	assert.Equal(t, 0, Apply(TransformNullIfBlank, 0))
}

func TestApplyBool01(t *testing.T) {
	assert.Equal(t, int64(1), Apply(TransformBool01, true))
	assert.Equal(t, int64(0), Apply(TransformBool01, false))
	assert.Equal(t, int64(1), Apply(TransformBool01, 1))
	assert.Equal(t, int64(1), Apply(TransformBool01, 1.0))
	assert.Equal(t, int64(0), Apply(TransformBool01, 2))
	assert.Equal(t, int64(1), Apply(TransformBool01, "true"))
	assert.Equal(t, int64(1), Apply(TransformBool01, "TRUE"))
	assert.Equal(t, int64(1), Apply(TransformBool01, "1"))
	assert.Equal(t, int64(0), Apply(TransformBool01, "yes"))
	assert.Equal(t, int64(0), Apply(TransformBool01, nil))
}

func TestApplyNumber(t *testing.T) {
	assert.Nil(t, Apply(TransformNumber, nil))
	assert.Nil(t, Apply(TransformNumber, ""))
	assert.Nil(t, Apply(TransformNumber, "   "))
	assert.Nil(t, Apply(TransformNumber, "not a number"))
	assert.Equal(t, int64(42), Apply(TransformNumber, "42"))
	assert.Equal(t, 3.5, Apply(TransformNumber, "3.5"))
	assert.Equal(t, int64(7), Apply(TransformNumber, 7))
	assert.Equal(t, 2.5, Apply(TransformNumber, 2.5))
}

func TestParseTransform(t *testing.T) {
	for in, want := range map[string]TransformKind{
		"":              TransformNone,
		"trim":          TransformTrim,
		"UPPER":         TransformUpper,
		"lower":         TransformLower,
		"null_if_blank": TransformNullIfBlank,
		"bool01":        TransformBool01,
		"number":        TransformNumber,
		"text":          TransformText,
	} {
		got, err := ParseTransform(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTransform("reverse")
	assert.Error(t, err)
}
