package maggtomic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckURIsRejectsNonURIs(t *testing.T) {
	require.NoError(t, CheckURIs([]string{"http://example.com/thing"}))

	err := CheckURIs([]string{"not-a-uri"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidResource)
}

func TestPrefixExpand(t *testing.T) {
	out := PrefixExpand([]string{"qudt:value", "myns:comment", "http://already/expanded"}, map[string]string{
		"myns": "scheme://host/ns/mine#",
	})
	require.Equal(t, []string{
		"http://qudt.org/schema/qudt#value",
		"scheme://host/ns/mine#comment",
		"http://already/expanded",
	}, out)
}

func TestPrefixExpandLeavesUnknownPrefixesVerbatim(t *testing.T) {
	out := PrefixExpand([]string{"nope:local"}, nil)
	require.Equal(t, []string{"nope:local"}, out)
}

func TestPrefixExpandPassesThroughCompactFormLookingURIs(t *testing.T) {
	// "local" starting with "/" means this isn't a CURIE at all.
	out := PrefixExpand([]string{"x:/abs/path"}, nil)
	require.Equal(t, []string{"x:/abs/path"}, out)
}

func TestPrefixCompactPrefersLongestMatch(t *testing.T) {
	got := PrefixCompact("http://qudt.org/schema/qudt#value", map[string]string{
		"schema": "http://qudt.org/schema/",
	})
	require.Equal(t, "qudt:value", got)

	got = PrefixCompact("http://unmapped.example/thing", nil)
	require.Equal(t, "http://unmapped.example/thing", got)
}
