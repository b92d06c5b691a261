// Package codec implements the user-shareable ID encoding: Crockford
// base-32 over an arbitrary-precision integer, with an ISO-7064-style
// mod-97-10 check value (spec.md §4.1). It has no dependency on the rest
// of the module; unlike encoding/base32 or multiformats/go-base32, both
// of which pack raw bytes 5 bits at a time, Crockford's scheme here
// treats the id as a base-32 *integer* the way hex or decimal notation
// treats a number, so it is hand-rolled on math/big rather than adapted
// from a byte-oriented codec.
package codec

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// alphabet is the 32-symbol Crockford alphabet: digits 0-9 plus the
// letters of the Latin alphabet, excluding I, L, O, and U to avoid visual
// confusion with 1, 1, 0, and V/W. Encode and Generate emit lowercase.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var charValue [256]int8

func init() {
	for i := range charValue {
		charValue[i] = -1
	}
	for i, c := range alphabet {
		charValue[c] = int8(i)
	}
}

const base = 97

// Encode renders n in Crockford base-32, optionally zero-padded to
// minLength (before any checksum digits), optionally hyphenated every
// splitEvery characters, and optionally suffixed with a 2-character
// ISO-7064 mod-97-10 style check value.
func Encode(n uint64, splitEvery, minLength int, checksum bool) string {
	digits := encodeDigits(n)
	for len(digits) < minLength {
		digits = "0" + digits
	}
	if checksum {
		digits += checkDigits(n)
	}
	if splitEvery > 0 {
		digits = hyphenate(digits, splitEvery)
	}
	return digits
}

// Decode parses a Crockford base-32 string back to its integer value,
// after canonicalising normalisation: lowercase, hyphens stripped, and
// the common-typo substitutions {I,i,l,L}->1 and {O,o}->0. If checksum
// is true, the trailing 2 characters are validated as the ISO-7064
// mod-97-10 style check value; a mismatch or malformed input fails with
// ErrInvalidIdentifier. Decode is total over the canonicalised alphabet.
func Decode(encoded string, checksum bool) (uint64, error) {
	s := normalize(encoded)
	if checksum {
		if len(s) < 2 {
			return 0, fmt.Errorf("%w: %q too short for a checksum", ErrInvalidIdentifier, encoded)
		}
		data, check := s[:len(s)-2], s[len(s)-2:]
		n, err := decodeDigits(data)
		if err != nil {
			return 0, err
		}
		if check != checkDigits(n) {
			return 0, fmt.Errorf("%w: %q failed checksum", ErrInvalidIdentifier, encoded)
		}
		return n, nil
	}
	return decodeDigits(s)
}

// Generate produces a random Crockford base-32 identifier of the
// requested total length (including any checksum digits), hyphenated
// every splitEvery characters. Collisions are not this layer's concern;
// they are recovered at the Ident layer (spec.md §4.1).
func Generate(length, splitEvery int, checksum bool) (string, error) {
	dataLen := length
	if checksum {
		dataLen -= 2
	}
	if dataLen <= 0 {
		return "", fmt.Errorf("%w: length %d too short", ErrInvalidIdentifier, length)
	}

	var sb strings.Builder
	buf := make([]byte, 1)
	for i := 0; i < dataLen; i++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating random id: %w", err)
		}
		sb.WriteByte(alphabet[int(buf[0])%len(alphabet)])
	}
	digits := sb.String()

	n, err := decodeDigits(digits)
	if err != nil {
		return "", err
	}
	if checksum {
		digits += checkDigits(n)
	}
	if splitEvery > 0 {
		digits = hyphenate(digits, splitEvery)
	}
	return digits, nil
}

func encodeDigits(n uint64) string {
	if n == 0 {
		return "0"
	}
	var sb [13]byte // uint64 max needs 13 base-32 digits
	i := len(sb)
	for n > 0 {
		i--
		sb[i] = alphabet[n%32]
		n /= 32
	}
	return string(sb[i:])
}

func decodeDigits(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		v := charValue[s[i]]
		if v < 0 {
			return 0, fmt.Errorf("%w: invalid character %q in %q", ErrInvalidIdentifier, s[i], s)
		}
		// overflow guard: 13 digits of base 32 can exceed 2^64
		if n > (1<<64-1)/32 {
			return 0, fmt.Errorf("%w: %q overflows 64 bits", ErrInvalidIdentifier, s)
		}
		n = n*32 + uint64(v)
	}
	return n, nil
}

// checkDigits computes a 2-character ISO-7064 mod-97-10 check value for
// n: c = 98 - ((n*100) mod 97), which lies in [2, 98], rendered as two
// decimal digits.
func checkDigits(n uint64) string {
	big100 := new(big.Int).Mul(new(big.Int).SetUint64(n), big.NewInt(100))
	mod := new(big.Int).Mod(big100, big.NewInt(base)).Int64()
	c := 98 - mod
	return fmt.Sprintf("%02d", c)
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	replacer := strings.NewReplacer("i", "1", "l", "1", "o", "0")
	return replacer.Replace(s)
}

func hyphenate(s string, every int) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && i%every == 0 {
			sb.WriteByte('-')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
