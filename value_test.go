package maggtomic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompareValuesNumeric(t *testing.T) {
	require.Equal(t, -1, CompareValues(int64(1), int64(2)))
	require.Equal(t, 1, CompareValues(3.5, int64(2)))
	require.Equal(t, 0, CompareValues(int64(4), 4.0))
}

func TestCompareValuesStringsAndTime(t *testing.T) {
	require.Equal(t, -1, CompareValues("a", "b"))

	t1 := time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2020, 11, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, -1, CompareValues(t1, t2))
	require.Equal(t, 0, CompareValues(t1, t1))
}

func TestCompareValuesIdents(t *testing.T) {
	a := IdentFromInstant(epoch)
	b := IdentFromInstant(epoch.Add(time.Second))
	require.Equal(t, -1, CompareValues(a, b))
	require.Equal(t, 0, CompareValues(a, a))
}

func TestValuesEqual(t *testing.T) {
	require.True(t, ValuesEqual(int64(5), 5.0))
	require.True(t, ValuesEqual("x", "x"))
	require.False(t, ValuesEqual(OidURIRef, OidVaemID))
}
