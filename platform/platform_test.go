package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDRoundTripEveryPlatform(t *testing.T) {
	for _, p := range All() {
		id, ok := p.ID()
		assert.True(t, ok, "platform %s has no id", p)
		assert.NotZero(t, id)
		assert.Equal(t, p, FromID(id))
	}
}

func TestFromIDUnrecognized(t *testing.T) {
	assert.Equal(t, Unknown, FromID(0))
	assert.Equal(t, Unknown, FromID(200))
}

func TestParse(t *testing.T) {
	p, ok := Parse("gaccode")
	assert.True(t, ok)
	assert.Equal(t, GacCode, p)

	_, ok = Parse("openai")
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)

	// Unknown is a resolution result, never a parseable platform.
	_, ok = Parse("unknown")
	assert.False(t, ok)
}

func TestUnknownHasNoID(t *testing.T) {
	_, ok := Unknown.ID()
	assert.False(t, ok)
}

func TestIDHex(t *testing.T) {
	assert.Equal(t, "01", ID(1).Hex())
	assert.Equal(t, "0f", ID(15).Hex())
	assert.Equal(t, "ff", ID(255).Hex())
}

func TestParseHex(t *testing.T) {
	id, ok := ParseHex("01")
	assert.True(t, ok)
	assert.Equal(t, ID(1), id)

	id, ok = ParseHex("fF")
	assert.True(t, ok)
	assert.Equal(t, ID(255), id)

	_, ok = ParseHex("00")
	assert.False(t, ok, "zero tag is reserved")
	_, ok = ParseHex("1")
	assert.False(t, ok)
	_, ok = ParseHex("012")
	assert.False(t, ok)
	_, ok = ParseHex("zz")
	assert.False(t, ok)
}

func TestAllSorted(t *testing.T) {
	all := All()
	assert.Len(t, all, len(ids))
	for i := 1; i < len(all); i++ {
		assert.Less(t, string(all[i-1]), string(all[i]))
	}
}
