package util

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrInvalidHex is returned when hex text has an odd length or a non-hex character.
var ErrInvalidHex = errors.New("invalid hex")

const upperHexDigits = "0123456789ABCDEF"

// BytesToHex renders b as uppercase hex, two characters per byte, without separators.
func BytesToHex(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 2) //nolint:mnd // two hex digits per byte

	for _, v := range b {
		sb.WriteByte(upperHexDigits[v>>4])
		sb.WriteByte(upperHexDigits[v&0x0f])
	}

	return sb.String()
}

// HexToBytes parses hex text into bytes. Whitespace anywhere in s is ignored.
// A 0x prefix is not accepted here, see Strip0x.
func HexToBytes(s string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if len(compact)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidHex, "odd length %d", len(compact))
	}

	b, err := hex.DecodeString(compact)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHex, err.Error())
	}

	return b, nil
}

// Concat returns a new slice holding a followed by b.
func Concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Has0xPrefix reports whether s starts with 0x or 0X.
func Has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Strip0x removes a single leading 0x or 0X from s.
func Strip0x(s string) string {
	if Has0xPrefix(s) {
		return s[2:]
	}
	return s
}

// DecodePrefixedHex strips an optional 0x prefix and decodes the remainder.
func DecodePrefixedHex(s string) ([]byte, error) {
	return HexToBytes(Strip0x(strings.TrimSpace(s)))
}
