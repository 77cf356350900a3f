package platform

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// SessionIDLength is the length of every session identifier, prefixed or
// standard: 32 hex characters in 8-4-4-4-12 groups.
const SessionIDLength = 36

var hyphenAt = [...]int{8, 13, 18, 23}

// IsWellFormed reports whether s has the shape of a session identifier:
// 36 characters, hyphens at the standard group boundaries, hex everywhere
// else (case-insensitive).
func IsWellFormed(s string) bool {
	if len(s) != SessionIDLength {
		return false
	}
	hyphens := hyphenAt[:]
	for i := 0; i < len(s); i++ {
		if len(hyphens) > 0 && i == hyphens[0] {
			if s[i] != '-' {
				return false
			}
			hyphens = hyphens[1:]
			continue
		}
		if _, ok := hexDigit(s[i]); !ok {
			return false
		}
	}
	return true
}

// EncodeSessionID embeds the tag into a well-formed identifier by replacing
// its first two characters with the tag's hex encoding. The remaining 34
// characters of payload are preserved.
func EncodeSessionID(id ID, payload string) (string, error) {
	if id == 0 {
		return "", errors.New("platform: session id tag out of range")
	}
	if !IsWellFormed(payload) {
		return "", errors.Newf("platform: malformed identifier payload %q", payload)
	}
	return id.Hex() + payload[2:], nil
}

// DecodeSessionID extracts the platform tag from a prefixed identifier's
// first two characters. It returns (Unknown, false) for malformed
// identifiers and for tags outside the static table; it never fails hard,
// since most standard identifiers simply carry random leading characters.
func DecodeSessionID(s string) (Platform, bool) {
	if !IsWellFormed(s) {
		return Unknown, false
	}
	id, ok := ParseHex(strings.ToLower(s[:2]))
	if !ok {
		return Unknown, false
	}
	p := FromID(id)
	if p == Unknown {
		return Unknown, false
	}
	return p, true
}

// NewStandardID generates a fresh identifier with no embedded tag,
// indistinguishable from a fully random one.
func NewStandardID() string {
	return uuid.NewString()
}

// NewSessionID generates a fresh identifier tagged with p's id.
func NewSessionID(p Platform) (string, error) {
	prefixed, _, err := NewSessionPair(p)
	return prefixed, err
}

// NewSessionPair generates one conceptual identifier in both of its forms:
// the prefixed form carries p's tag in its first two characters, the
// standard form keeps the random characters generated there. The two share
// their remaining 34 characters.
func NewSessionPair(p Platform) (prefixed, standard string, err error) {
	id, ok := p.ID()
	if !ok {
		return "", "", errors.Newf("platform: cannot tag identifier for unknown platform %q", p)
	}
	standard = uuid.NewString()
	prefixed, err = EncodeSessionID(id, standard)
	if err != nil {
		return "", "", err
	}
	return prefixed, standard, nil
}

// PrefixedID converts a standard-form identifier into its prefixed
// counterpart for p.
func PrefixedID(standard string, p Platform) (string, error) {
	id, ok := p.ID()
	if !ok {
		return "", errors.Newf("platform: cannot tag identifier for unknown platform %q", p)
	}
	return EncodeSessionID(id, standard)
}
