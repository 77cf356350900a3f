package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWellFormed(t *testing.T) {
	assert.True(t, IsWellFormed("01234567-89ab-cdef-0123-456789abcdef"))
	assert.True(t, IsWellFormed("01234567-89AB-CDEF-0123-456789ABCDEF"))

	assert.False(t, IsWellFormed(""))
	assert.False(t, IsWellFormed("01234567-89ab-cdef-0123-456789abcde"))
	assert.False(t, IsWellFormed("01234567-89ab-cdef-0123-456789abcdef0"))
	assert.False(t, IsWellFormed("0123456789ab-cdef-0123-456789abcdef-"))
	assert.False(t, IsWellFormed("g1234567-89ab-cdef-0123-456789abcdef"))
	assert.False(t, IsWellFormed(strings.Repeat("-", 36)))
}

func TestEncodeDecodeEveryPlatform(t *testing.T) {
	payload := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	for _, p := range All() {
		id, ok := p.ID()
		require.True(t, ok)

		encoded, err := EncodeSessionID(id, payload)
		require.NoError(t, err)
		assert.True(t, IsWellFormed(encoded))
		assert.Equal(t, id.Hex(), encoded[:2])
		assert.Equal(t, payload[2:], encoded[2:])

		decoded, ok := DecodeSessionID(encoded)
		assert.True(t, ok)
		assert.Equal(t, p, decoded)
	}
}

func TestEncodeRejectsZeroTag(t *testing.T) {
	_, err := EncodeSessionID(0, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	assert.Error(t, err)
}

func TestEncodeRejectsMalformedPayload(t *testing.T) {
	_, err := EncodeSessionID(1, "not-an-identifier")
	assert.Error(t, err)
}

func TestDecodeUnrecognizedPrefix(t *testing.T) {
	// "ff" is nonzero hex but maps to no platform.
	p, ok := DecodeSessionID("ffaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	assert.False(t, ok)
	assert.Equal(t, Unknown, p)

	// Non-hex leading characters cannot carry a tag.
	p, ok = DecodeSessionID("just a string, not an identifier....")
	assert.False(t, ok)
	assert.Equal(t, Unknown, p)
}

func TestDecodeUppercasePrefix(t *testing.T) {
	id, ok := Kimi.ID()
	require.True(t, ok)
	encoded, err := EncodeSessionID(id, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	require.NoError(t, err)

	p, ok := DecodeSessionID(strings.ToUpper(encoded))
	assert.True(t, ok)
	assert.Equal(t, Kimi, p)
}

func TestNewSessionPair(t *testing.T) {
	prefixed, standard, err := NewSessionPair(DeepSeek)
	require.NoError(t, err)

	assert.True(t, IsWellFormed(prefixed))
	assert.True(t, IsWellFormed(standard))
	assert.Equal(t, standard[2:], prefixed[2:], "pair must share its payload")

	p, ok := DecodeSessionID(prefixed)
	assert.True(t, ok)
	assert.Equal(t, DeepSeek, p)
}

func TestNewSessionPairUnknownPlatform(t *testing.T) {
	_, _, err := NewSessionPair(Platform("openai"))
	assert.Error(t, err)
	_, _, err = NewSessionPair(Unknown)
	assert.Error(t, err)
}

func TestPrefixedID(t *testing.T) {
	standard := NewStandardID()
	prefixed, err := PrefixedID(standard, GacCode)
	require.NoError(t, err)
	assert.Equal(t, "01", prefixed[:2])
	assert.Equal(t, standard[2:], prefixed[2:])
}
