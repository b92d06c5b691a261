package store

import (
	"context"
	"time"

	"github.com/polyneme/maggtomic"
)

// AsOfView converts a wall-clock instant, or an explicit transaction
// Ident, into a transaction cutoff (spec.md §4.6) and exposes it as a
// higher-order filter: every cursor it hands out is additionally
// constrained to t <= t0. It never mutates a caller-supplied Filter; it
// returns an extended copy.
type AsOfView struct {
	store *DatomStore
	t0    maggtomic.Ident
}

// AsOf builds a view cut off at an explicit transaction Ident.
func AsOf(s *DatomStore, t0 maggtomic.Ident) *AsOfView {
	return &AsOfView{store: s, t0: t0}
}

// AsOfTime resolves tau to the latest transaction whose wall-clock time
// is <= tau via a single reverse range scan on the generatedAtTime index
// (spec.md §4.6), and builds a view cut off there. If no transaction
// exists at or before tau, the view's cutoff is the nil Ident, and every
// probe through it sees nothing.
func AsOfTime(ctx context.Context, s *DatomStore, tau time.Time) (*AsOfView, error) {
	t0, found, err := s.LatestTransactionAsOf(ctx, tau)
	if err != nil {
		return nil, err
	}
	if !found {
		return &AsOfView{store: s, t0: maggtomic.NilIdent}, nil
	}
	return &AsOfView{store: s, t0: t0}, nil
}

// Cutoff returns the transaction Ident this view is cut off at.
func (v *AsOfView) Cutoff() maggtomic.Ident { return v.t0 }

// Store returns the underlying DatomStore handle, so components that
// must still mint Idents while evaluating against this view (the query
// compiler's resource resolution, structured-literal lookups) can do so
// through the same store (spec.md §4.6).
func (v *AsOfView) Store() *DatomStore { return v.store }

// Extend composes filter with this view's t <= t0 constraint and returns
// a cursor over the visible datoms (spec.md §5: "Query cursors from
// AsOfView see exactly those datoms whose t ≤ t0"). filter itself is left
// untouched.
func (v *AsOfView) Extend(ctx context.Context, filter Filter) (*DatomCursor, error) {
	out := filter
	if out.TMax == nil || maggtomic.CompareIdents(v.t0, *out.TMax) < 0 {
		t0 := v.t0
		out.TMax = &t0
	}
	return v.store.Find(ctx, out)
}
