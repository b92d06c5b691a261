package store

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/polyneme/maggtomic"
)

// RawOp is one compiled (e, a, v, op) operation awaiting a transaction
// Ident, produced by TransactionEngine.Assert/Retract (spec.md §4.5 step
// 5) before Transact finalises a batch.
type RawOp struct {
	E maggtomic.Ident
	A maggtomic.Ident
	V maggtomic.Value
	O bool
}

// Filter describes one per-clause index probe (spec.md §4.4, §4.7 step
// 2): an optional ground constraint on each field, plus a scalar
// predicate on v. DatomStore.Find hands the resulting document filter to
// the backing collection, which chooses whichever of the five indexes
// its leading constrained fields match; the evaluator never pins one.
type Filter struct {
	E    *maggtomic.Ident
	EIn  []maggtomic.Ident
	A    *maggtomic.Ident
	AIn  []maggtomic.Ident
	V    maggtomic.Value // ground equality; mutually exclusive with VPred
	VPred bson.M         // operator -> operand, e.g. {"$gt": ...}
	T    *maggtomic.Ident
	TMax *maggtomic.Ident // t <= TMax; set by AsOfView.Extend
	O    *bool
}

func (f Filter) toBSON() bson.M {
	m := bson.M{}
	switch {
	case f.E != nil:
		m["e"] = *f.E
	case len(f.EIn) > 0:
		m["e"] = bson.M{"$in": f.EIn}
	}
	switch {
	case f.A != nil:
		m["a"] = *f.A
	case len(f.AIn) > 0:
		m["a"] = bson.M{"$in": f.AIn}
	}
	switch {
	case len(f.VPred) > 0:
		m["v"] = f.VPred
	case f.V != nil:
		m["v"] = f.V
	}
	switch {
	case f.T != nil && f.TMax != nil:
		m["t"] = bson.M{"$eq": *f.T, "$lte": *f.TMax}
	case f.T != nil:
		m["t"] = *f.T
	case f.TMax != nil:
		m["t"] = bson.M{"$lte": *f.TMax}
	}
	if f.O != nil {
		m["o"] = *f.O
	}
	return m
}
