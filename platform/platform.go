// Package platform defines the fixed set of backend platforms the tool can
// target and the tagged-identifier codec that embeds a platform id in a
// session identifier.
package platform

import (
	"fmt"
	"sort"
)

// Platform names a backend the tool can target.
type Platform string

// Known platforms.
const (
	GacCode     Platform = "gaccode"
	DeepSeek    Platform = "deepseek"
	Kimi        Platform = "kimi"
	SiliconFlow Platform = "siliconflow"
	LocalProxy  Platform = "local_proxy"
	GLM         Platform = "glm"

	// Unknown is returned wherever an identifier or tag cannot be resolved
	// to a known platform. It is never part of the static table.
	Unknown Platform = "unknown"
)

// ID is a compact platform tag, 1..255, encoded as two lowercase hex
// characters when embedded in a session identifier.
type ID uint8

// ids is the static bijection between platform names and their tags. Adding
// a platform means picking the next free id; ids are wire format and must
// never be reassigned.
var ids = map[Platform]ID{
	GacCode:     1,
	DeepSeek:    2,
	Kimi:        3,
	SiliconFlow: 4,
	LocalProxy:  5,
	GLM:         6,
}

var names = func() map[ID]Platform {
	m := make(map[ID]Platform, len(ids))
	for name, id := range ids {
		if id == 0 {
			panic(fmt.Sprintf("platform: zero id for %q", name))
		}
		if dup, ok := m[id]; ok {
			panic(fmt.Sprintf("platform: id %d assigned to both %q and %q", id, dup, name))
		}
		m[id] = name
	}
	return m
}()

// Known reports whether p is in the static platform table.
func (p Platform) Known() bool {
	_, ok := ids[p]
	return ok
}

// ID returns p's tag. ok is false for names outside the static table,
// including Unknown.
func (p Platform) ID() (ID, bool) {
	id, ok := ids[p]
	return id, ok
}

// String implements fmt.Stringer.
func (p Platform) String() string { return string(p) }

// FromID resolves a tag back to its platform name. Unrecognized tags yield
// Unknown.
func FromID(id ID) Platform {
	if name, ok := names[id]; ok {
		return name
	}
	return Unknown
}

// Parse resolves a platform name string. ok is false for anything outside
// the static table.
func Parse(s string) (Platform, bool) {
	p := Platform(s)
	return p, p.Known()
}

// All returns the known platforms sorted by name.
func All() []Platform {
	out := make([]Platform, 0, len(ids))
	for p := range ids {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Hex returns the two-character lowercase hex encoding of the tag.
func (id ID) Hex() string {
	return fmt.Sprintf("%02x", uint8(id))
}

// ParseHex decodes a two-character hex tag. ok is false when s is not
// exactly two hex characters or decodes to zero.
func ParseHex(s string) (ID, bool) {
	if len(s) != 2 {
		return 0, false
	}
	var v uint8
	for i := 0; i < 2; i++ {
		d, ok := hexDigit(s[i])
		if !ok {
			return 0, false
		}
		v = v<<4 | d
	}
	if v == 0 {
		return 0, false
	}
	return ID(v), true
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
