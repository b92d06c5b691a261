package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyneme/maggtomic"
)

func TestBootstrapSeedsReservedIdents(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	require.NoError(t, s.Bootstrap(ctx))

	for id, uri := range maggtomic.ReservedURIs {
		cur, err := s.Find(ctx, Filter{E: &id, A: &maggtomic.OidURIRef})
		require.NoError(t, err)
		require.True(t, cur.Next(ctx))
		require.Equal(t, uri, cur.Datom().V)
		require.NoError(t, cur.Close(ctx))
	}
}

func TestBootstrapTwiceFails(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	require.NoError(t, s.Bootstrap(ctx))
	require.Error(t, s.Bootstrap(ctx))
}

func TestInsertBatchRejectsMixedTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	e, a, t1, t2 := maggtomic.FreshIdent(), maggtomic.FreshIdent(), maggtomic.FreshIdent(), maggtomic.FreshIdent()
	_, err := s.InsertBatch(ctx, []maggtomic.Datom{
		{E: e, A: a, V: maggtomic.FreshIdent(), T: t1, O: true},
		{E: e, A: a, V: maggtomic.FreshIdent(), T: t2, O: true},
	})
	require.Error(t, err)
}

func TestInsertBatchValidatesStructuredValueInvariant(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	e, a, tx := maggtomic.FreshIdent(), maggtomic.FreshIdent(), maggtomic.FreshIdent()
	_, err := s.InsertBatch(ctx, []maggtomic.Datom{
		{E: e, A: a, V: "not-an-ident", T: tx, O: true},
	})
	require.Error(t, err)
}

func TestInsertBatchRejectsDuplicateURIRef(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	tx := maggtomic.FreshIdent()
	e1, e2 := maggtomic.FreshIdent(), maggtomic.FreshIdent()
	_, err := s.InsertBatch(ctx, []maggtomic.Datom{
		{E: e1, A: maggtomic.OidURIRef, V: "http://example.org/dup", T: tx, O: true},
		{E: e2, A: maggtomic.OidURIRef, V: "http://example.org/dup", T: tx, O: true},
	})
	require.Error(t, err)
}

func TestLatestTransactionAsOf(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	require.NoError(t, s.Bootstrap(ctx))

	resolver := NewResourceResolver(s)
	engine := NewTransactionEngine(s, resolver)
	ops, err := engine.Assert(ctx, Triple{E: "http://example.org/e1", A: "http://example.org/a1", V: "http://example.org/v1"}, nil)
	require.NoError(t, err)
	t1, err := engine.Transact(ctx, ops)
	require.NoError(t, err)

	found, ok, err := s.LatestTransactionAsOf(ctx, maggtomic.InstantOf(t1).Add(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, t1, found)
}
