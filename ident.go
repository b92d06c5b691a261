package maggtomic

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ident is the opaque 96-bit identifier used for every entity, attribute,
// and transaction in the store. It is a primitive.ObjectID under the hood:
// a 4-byte Unix-second timestamp, a 5-byte process/random field, and a
// 3-byte counter, which gives exactly the "monotone in creation time to
// within a second" ordering the store relies on. Two Idents are equal iff
// bitwise equal, since ObjectID is a plain comparable [12]byte array.
type Ident = primitive.ObjectID

// NilIdent is the zero Ident; never a valid entity, attribute, or
// transaction identifier.
var NilIdent Ident

// FreshIdent allocates a new Ident stamped with the current wall-clock
// time.
func FreshIdent() Ident {
	return primitive.NewObjectID()
}

// IdentFromInstant builds a deterministic, reproducible Ident anchored at
// the given instant, with its process/random and counter fields zeroed.
// Used only for the four reserved Idents (§3), which must be stable
// across databases and across processes.
func IdentFromInstant(t time.Time) Ident {
	return primitive.NewObjectIDFromTimestamp(t)
}

// InstantOf returns the creation instant encoded in an Ident's leading
// 4 bytes, at second granularity.
func InstantOf(id Ident) time.Time {
	return id.Timestamp()
}

// CompareIdents gives the total order indexes rely on: byte-for-byte,
// which for ObjectIDs is also creation-time order to within a second.
func CompareIdents(a, b Ident) int {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

var epoch = time.Unix(0, 0).UTC()

// Reserved Idents (§3). Stable across every database: an anchor for the
// URI-to-Ident mapping, the transaction wall-clock attribute, the
// shareable-ID attribute, and the literal-value attribute. Each is
// constructed from a fixed instant one second apart, starting at the Unix
// epoch, so that they never collide with an Ident minted by FreshIdent
// for real data (which requires the ambient clock to run backwards to the
// epoch to collide).
var (
	OidURIRef          = IdentFromInstant(epoch)
	OidGeneratedAtTime = IdentFromInstant(epoch.Add(1 * time.Second))
	OidVaemID          = IdentFromInstant(epoch.Add(2 * time.Second))
	OidQudtValue       = IdentFromInstant(epoch.Add(3 * time.Second))
)

// ReservedURIs maps each reserved Ident to the canonical URI it is
// bootstrapped against in collection creation (spec.md §6).
var ReservedURIs = map[Ident]string{
	OidURIRef:          "http://www.linkedmodel.org/schema/vaem#uriref",
	OidGeneratedAtTime: PrefixMap["prov"] + "generatedAtTime",
	OidVaemID:          PrefixMap["vaem"] + "id",
	OidQudtValue:       PrefixMap["qudt"] + "value",
}

// IsLiteralValuedAttribute reports whether a is one of the two reserved
// attributes whose datoms carry a primitive literal (or, for OidVaemID, a
// decoded int64) rather than an Ident in the v field (§3, structured-value
// invariant I2).
func IsLiteralValuedAttribute(a Ident) bool {
	return a == OidVaemID || a == OidQudtValue
}
