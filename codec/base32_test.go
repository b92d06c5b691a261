package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 31, 32, 1023, 1 << 40, ^uint64(0)}
	for _, n := range cases {
		enc := Encode(n, 5, 10, true)
		got, err := Decode(enc, true)
		require.NoError(t, err)
		require.Equal(t, n, got, "round trip for %d via %q", n, enc)
	}
}

func TestEncodeDecodeRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		n := r.Uint64()
		enc := Encode(n, 5, 10, true)
		got, err := Decode(enc, true)
		require.NoError(t, err)
		require.Equal(t, n, got)
	}
}

func TestDecodeIsCaseAndTypoInsensitive(t *testing.T) {
	enc := Encode(123456789, 5, 10, true)
	lower := normalizeForTest(enc)
	n, err := Decode(lower, true)
	require.NoError(t, err)
	require.Equal(t, uint64(123456789), n)
}

func normalizeForTest(s string) string {
	// simulate a user re-typing 0 as o and 1 as i, lowercase throughout
	out := []byte(s)
	for i, c := range out {
		switch c {
		case '0':
			out[i] = 'o'
		case '1':
			out[i] = 'i'
		default:
			if c >= 'A' && c <= 'Z' {
				out[i] = c - 'A' + 'a'
			}
		}
	}
	return string(out)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	enc := Encode(42, 0, 8, true)
	tampered := enc[:len(enc)-1] + flipDigit(enc[len(enc)-1])
	_, err := Decode(tampered, true)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func flipDigit(b byte) string {
	for _, c := range alphabet {
		if byte(c) != b {
			return string(c)
		}
	}
	return "0"
}

func TestDecodeRejectsInvalidCharacters(t *testing.T) {
	_, err := Decode("not-valid-!!", false)
	require.Error(t, err)
}

func TestGenerateProducesRequestedLength(t *testing.T) {
	s, err := Generate(10, 5, true)
	require.NoError(t, err)
	// 10 characters plus one hyphen inserted every 5 characters
	require.Equal(t, 11, len(s))

	n, err := Decode(s, true)
	require.NoError(t, err)
	require.Equal(t, s, Encode(n, 5, 8, true))
}

func TestEncodeMinLengthPadsWithZeros(t *testing.T) {
	s := Encode(1, 0, 8, false)
	require.Equal(t, 8, len(s))
	require.Equal(t, "00000001", s)
}
