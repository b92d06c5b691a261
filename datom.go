package maggtomic

import "fmt"

// Datom is the fundamental, immutable unit of storage: an assertion or
// retraction of an entity-attribute-value statement, stamped with the
// transaction that wrote it (spec.md §3).
type Datom struct {
	E Ident // entity being described
	A Ident // attribute (always resolved from a URI)
	V Value // Ident, except for the two reserved literal-valued attributes
	T Ident // the reifying transaction entity
	O bool  // true = assertion, false = retraction
}

// String renders a Datom for logs and CLI tables.
func (d Datom) String() string {
	op := "+"
	if !d.O {
		op = "-"
	}
	return fmt.Sprintf("%s[%s %s %s %s]", op, d.E.Hex(), d.A.Hex(), stringifyValue(d.V), d.T.Hex())
}

// PrefixMap is the base CURIE prefix map (spec.md §6), always available
// to callers, who may extend it with additional prefixes but never
// remove from it.
var PrefixMap = map[string]string{
	"qudt": "http://qudt.org/schema/qudt#",
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"vaem": "http://www.linkedmodel.org/schema/vaem#",
	"prov": "http://www.w3.org/ns/prov#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
}
