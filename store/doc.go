// Package store implements DatomStore (spec.md §4.4): the validated,
// append-only datom set backed by a MongoDB collection, plus the
// transaction-finalisation logic (minting t, reifying it, allocating its
// shareable ID) shared by the transaction engine and the resource
// resolver's own minting path.
package store

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/polyneme/maggtomic"
)

// document is the on-the-wire shape of a stored datom (spec.md §6): the
// five logical fields plus a synthetic _id. Field names are kept to the
// single-letter form the original schema uses.
type document struct {
	ID primitive.ObjectID `bson:"_id"`
	E  primitive.ObjectID `bson:"e"`
	A  primitive.ObjectID `bson:"a"`
	V  interface{}        `bson:"v"`
	T  primitive.ObjectID `bson:"t"`
	O  bool               `bson:"o"`
}

func toDatom(d document) maggtomic.Datom {
	return maggtomic.Datom{E: d.E, A: d.A, V: normalizeDecodedValue(d.V), T: d.T, O: d.O}
}

// normalizeDecodedValue folds the BSON decoder's int32 into the store's
// canonical int64 representation for numeric Values, so callers never
// have to type-switch on both.
func normalizeDecodedValue(v interface{}) maggtomic.Value {
	switch n := v.(type) {
	case int32:
		return int64(n)
	default:
		return n
	}
}

func fromOp(op RawOp, id, t primitive.ObjectID) document {
	return document{ID: id, E: op.E, A: op.A, V: op.V, T: t, O: op.O}
}
