package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]string{"b": "2", "a": "1", "c": "3"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2","c":"3"}`, string(data))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(map[string]string{"expr": "a < b && c > d"})
	require.NoError(t, err)
	assert.Equal(t, `{"expr":"a < b && c > d"}`, string(data))
}

func TestMarshalCanonicalEmpty(t *testing.T) {
	data, err := MarshalCanonical(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestCompareUTF16(t *testing.T) {
	// U+1F600 sorts after U+FF61 in UTF-8 byte order but before it in UTF-16.
	assert.Negative(t, compareUTF16("\U0001F600", "\uFF61"))
	assert.Zero(t, compareUTF16("same", "same"))
}
