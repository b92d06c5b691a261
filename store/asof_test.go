package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyneme/maggtomic"
)

func TestAsOfTimeHidesLaterTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tx1 := maggtomic.IdentFromInstant(base)
	tx2 := maggtomic.IdentFromInstant(base.Add(10 * time.Second))

	_, err := s.InsertBatch(ctx, []maggtomic.Datom{
		{E: tx1, A: maggtomic.OidGeneratedAtTime, V: base, T: tx1, O: true},
	})
	require.NoError(t, err)
	_, err = s.InsertBatch(ctx, []maggtomic.Datom{
		{E: tx2, A: maggtomic.OidGeneratedAtTime, V: base.Add(10 * time.Second), T: tx2, O: true},
	})
	require.NoError(t, err)

	view, err := AsOfTime(ctx, s, base.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, tx1, view.Cutoff())
}

func TestAsOfTimeBeforeAnyTransactionSeesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	view, err := AsOfTime(ctx, s, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, maggtomic.NilIdent, view.Cutoff())

	cur, err := view.Extend(ctx, Filter{})
	require.NoError(t, err)
	require.False(t, cur.Next(ctx))
}

func TestExtendComposesTMax(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	t0 := maggtomic.FreshIdent()
	later := maggtomic.FreshIdent()
	_, err := s.InsertBatch(ctx, []maggtomic.Datom{
		{E: later, A: maggtomic.OidGeneratedAtTime, V: maggtomic.InstantOf(later), T: later, O: true},
	})
	require.NoError(t, err)
	view := AsOf(s, t0)

	cur, err := view.Extend(ctx, Filter{})
	require.NoError(t, err)
	require.False(t, cur.Next(ctx), "a datom with t > t0 must not be visible")
	require.NoError(t, cur.Close(ctx))
}
