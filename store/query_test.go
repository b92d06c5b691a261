package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyneme/maggtomic"
)

func ground(s string) Term { return Term{Kind: TermGround, Ground: s} }
func variable(v string) Term { return Term{Kind: TermVar, Var: v} }
func probe(v string, pred map[string]interface{}) Term {
	return Term{Kind: TermProbe, Var: v, Predicate: pred}
}

func setupHarness(t *testing.T) (context.Context, *DatomStore, *ResourceResolver, *TransactionEngine, *QueryEvaluator) {
	t.Helper()
	ctx := context.Background()
	s := NewInMemoryDatomStore()
	require.NoError(t, s.Bootstrap(ctx))
	resolver := NewResourceResolver(s)
	engine := NewTransactionEngine(s, resolver)
	evaluator := NewQueryEvaluator(resolver)
	return ctx, s, resolver, engine, evaluator
}

// TestQueryAsOfModifiedKeys is scenario S3: 20 triples with a
// date-modified literal, queried back with a $gt/$lt window on the
// fabricated structured value.
func TestQueryAsOfModifiedKeys(t *testing.T) {
	ctx, s, _, engine, evaluator := setupHarness(t)
	prefixes := map[string]string{
		"myns": "scheme://host/ns/mine#",
		"s":    "scheme://host/schema#",
	}

	modified := time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("myns:key%02d", i)
		ops, err := engine.Assert(ctx, Triple{E: key, A: "s:dateModified", V: modified}, prefixes)
		require.NoError(t, err)
		_, err = engine.Transact(ctx, ops)
		require.NoError(t, err)
	}

	view, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)

	spec := QuerySpec{
		Where: []Clause{
			{variable("?key"), ground("s:dateModified"), variable("?sv")},
			{variable("?sv"), ground("qudt:value"), probe("?dt", map[string]interface{}{
				"$gt": time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC),
				"$lt": time.Date(2020, 11, 2, 0, 0, 0, 0, time.UTC),
			})},
		},
		Select:   []string{"?key", "?dt"},
		Prefixes: prefixes,
	}
	rows, err := evaluator.Query(ctx, view, spec)
	require.NoError(t, err)
	require.Len(t, rows, 20)
	for _, row := range rows {
		key, ok := row["?key"].(string)
		require.True(t, ok)
		require.True(t, strings.HasPrefix(key, "myns:"))
		dt, ok := row["?dt"].(time.Time)
		require.True(t, ok)
		require.True(t, dt.Equal(modified))
	}
}

// TestQueryHistoricalInvariance is scenario S4: a retraction is invisible
// to an as-of view taken before it, and removes exactly one row from a
// view taken after it; raw history still has both datoms.
func TestQueryHistoricalInvariance(t *testing.T) {
	ctx, s, resolver, engine, evaluator := setupHarness(t)
	prefixes := map[string]string{"myns": "scheme://host/ns/mine#", "s": "scheme://host/schema#"}

	modified := time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("myns:key%02d", i)
		keys = append(keys, key)
		ops, err := engine.Assert(ctx, Triple{E: key, A: "s:dateModified", V: modified}, prefixes)
		require.NoError(t, err)
		_, err = engine.Transact(ctx, ops)
		require.NoError(t, err)
	}

	beforeRetraction := time.Now()
	time.Sleep(1100 * time.Millisecond)

	retractOps, err := engine.Retract(ctx, Triple{E: keys[0], A: "s:dateModified", V: modified}, prefixes)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, retractOps)
	require.NoError(t, err)

	spec := QuerySpec{
		Where: []Clause{
			{variable("?key"), ground("s:dateModified"), variable("?v")},
		},
		Select:   []string{"?key"},
		Prefixes: prefixes,
	}

	viewBefore, err := AsOfTime(ctx, s, beforeRetraction)
	require.NoError(t, err)
	rowsBefore, err := evaluator.Query(ctx, viewBefore, spec)
	require.NoError(t, err)
	require.Len(t, rowsBefore, 20)

	viewNow, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)
	rowsNow, err := evaluator.Query(ctx, viewNow, spec)
	require.NoError(t, err)
	require.Len(t, rowsNow, 19)
	for _, row := range rowsNow {
		require.NotEqual(t, keys[0], row["?key"])
	}

	// Raw history (a find with no t cutoff) still has both datoms.
	keyIDs, err := resolver.IdsFor(ctx, []string{"scheme://host/ns/mine#key00", "scheme://host/schema#dateModified"})
	require.NoError(t, err)
	eID := keyIDs["scheme://host/ns/mine#key00"]
	aID := keyIDs["scheme://host/schema#dateModified"]
	cur, err := s.Find(ctx, Filter{E: &eID, A: &aID})
	require.NoError(t, err)
	var count int
	for cur.Next(ctx) {
		count++
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close(ctx))
	require.Equal(t, 2, count)
}

func TestQueryGroundClauseFiltersByEquality(t *testing.T) {
	ctx, s, _, engine, evaluator := setupHarness(t)
	ops, err := engine.Assert(ctx, Triple{E: "http://example.org/alice", A: "http://example.org/knows", V: "http://example.org/bob"}, nil)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, ops)
	require.NoError(t, err)

	ops2, err := engine.Assert(ctx, Triple{E: "http://example.org/alice", A: "http://example.org/knows", V: "http://example.org/carol"}, nil)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, ops2)
	require.NoError(t, err)

	view, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)

	spec := QuerySpec{
		Where: []Clause{
			{ground("http://example.org/alice"), ground("http://example.org/knows"), variable("?who")},
		},
	}
	rows, err := evaluator.Query(ctx, view, spec)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestQueryUnifiesSharedVariables(t *testing.T) {
	ctx, s, _, engine, evaluator := setupHarness(t)
	ops1, err := engine.Assert(ctx, Triple{E: "http://example.org/alice", A: "http://example.org/knows", V: "http://example.org/bob"}, nil)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, ops1)
	require.NoError(t, err)

	ops2, err := engine.Assert(ctx, Triple{E: "http://example.org/bob", A: "http://example.org/likes", V: "http://example.org/cheese"}, nil)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, ops2)
	require.NoError(t, err)

	// A third person known by alice, who likes nothing, must not join.
	ops3, err := engine.Assert(ctx, Triple{E: "http://example.org/alice", A: "http://example.org/knows", V: "http://example.org/dana"}, nil)
	require.NoError(t, err)
	_, err = engine.Transact(ctx, ops3)
	require.NoError(t, err)

	view, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)

	spec := QuerySpec{
		Where: []Clause{
			{ground("http://example.org/alice"), ground("http://example.org/knows"), variable("?who")},
			{variable("?who"), ground("http://example.org/likes"), variable("?what")},
		},
		Select: []string{"?who", "?what"},
	}
	rows, err := evaluator.Query(ctx, view, spec)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "http://example.org/bob", rows[0]["?who"])
	require.Equal(t, "http://example.org/cheese", rows[0]["?what"])
}

func TestQueryRejectsEmptyWhere(t *testing.T) {
	ctx, s, _, _, evaluator := setupHarness(t)
	view, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)
	_, err = evaluator.Query(ctx, view, QuerySpec{})
	require.Error(t, err)
}

func TestQueryRejectsUnsupportedPredicate(t *testing.T) {
	ctx, s, _, _, evaluator := setupHarness(t)
	view, err := AsOfTime(ctx, s, time.Now())
	require.NoError(t, err)
	spec := QuerySpec{
		Where: []Clause{
			{variable("?e"), ground("http://example.org/a"), probe("?v", map[string]interface{}{"$regex": ".*"})},
		},
	}
	_, err = evaluator.Query(ctx, view, spec)
	require.Error(t, err)
}
