package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/polyneme/maggtomic"
)

// Op is one compiled raw operation awaiting a transaction Ident (spec.md
// §4.5 step 5).
type Op = RawOp

// Triple is a user-level (entity, attribute, value) statement (spec.md
// §4.5). E and A must be a URI, a CURIE, or a raw Ident. V may be any of
// those too, or a primitive literal (string, int64, float64, bool,
// time.Time).
type Triple struct {
	E interface{}
	A interface{}
	V interface{}
}

// TransactionEngine turns user-level assert/retract triples into atomic
// groups of raw datoms (spec.md §4.5): compact-URI expansion, structured-
// literal fabrication, Ident resolution, and batch finalisation (minting
// t, reifying it, allocating its shareable ID).
type TransactionEngine struct {
	store    *DatomStore
	resolver *ResourceResolver
	log      *logrus.Entry
}

// NewTransactionEngine builds an engine writing through s, resolving
// resource references through r.
func NewTransactionEngine(s *DatomStore, r *ResourceResolver) *TransactionEngine {
	return &TransactionEngine{store: s, resolver: r, log: logEntry()}
}

// Assert compiles one (e, a, v) triple into the Ops that assert it,
// fabricating a structured-value entity when v is a primitive literal
// and a is not a reserved literal-valued attribute (spec.md §3, §4.5).
// It is compile-only: nothing is written until Transact is called.
func (te *TransactionEngine) Assert(ctx context.Context, triple Triple, prefixes map[string]string) ([]Op, error) {
	return te.compile(ctx, triple, true, prefixes)
}

// Retract compiles one (e, a, v) triple into the Op(s) that retract it.
// Per I6, retraction never touches the original assertion: it only
// appends a new (e, a, v, t', false) datom. When v is a primitive
// literal, Retract looks up the structured-value entity that an earlier
// Assert of the same (e, a, v) fabricated and retracts (e, a, S); if no
// such live statement exists, it fails with InvalidStatementError.
func (te *TransactionEngine) Retract(ctx context.Context, triple Triple, prefixes map[string]string) ([]Op, error) {
	return te.compile(ctx, triple, false, prefixes)
}

func (te *TransactionEngine) compile(ctx context.Context, triple Triple, assert bool, prefixes map[string]string) ([]Op, error) {
	eVal := expandTerm(triple.E, prefixes)
	aVal := expandTerm(triple.A, prefixes)
	vVal := expandTerm(triple.V, prefixes)

	eIdent, eURI, err := asResourceTerm(eVal)
	if err != nil {
		return nil, &maggtomic.InvalidStatementError{E: triple.E, A: triple.A, V: triple.V, Reason: "entity must be a URI/CURIE or an Ident: " + err.Error()}
	}
	aIdent, aURI, err := asResourceTerm(aVal)
	if err != nil {
		return nil, &maggtomic.InvalidStatementError{E: triple.E, A: triple.A, V: triple.V, Reason: "attribute must be a URI/CURIE or an Ident: " + err.Error()}
	}

	var uris []string
	if eURI != "" {
		uris = append(uris, eURI)
	}
	if aURI != "" {
		uris = append(uris, aURI)
	}
	if len(uris) > 0 {
		ids, err := te.resolver.IdsFor(ctx, uris)
		if err != nil {
			return nil, err
		}
		if eURI != "" {
			eIdent = ids[eURI]
		}
		if aURI != "" {
			aIdent = ids[aURI]
		}
	}

	literalValued := maggtomic.IsLiteralValuedAttribute(aIdent)

	var (
		vIdent    maggtomic.Ident
		vURI      string
		vLiteral  maggtomic.Value
		vIsIdent  bool
		vIsLiteral bool
	)
	switch vv := vVal.(type) {
	case maggtomic.Ident:
		vIdent, vIsIdent = vv, true
	case string:
		if maggtomic.IsURI(vv) {
			vURI = vv
		} else {
			vIsLiteral, vLiteral = true, vv
		}
	case nil:
		return nil, &maggtomic.InvalidStatementError{E: triple.E, A: triple.A, V: triple.V, Reason: "value must not be nil"}
	default:
		vIsLiteral, vLiteral = true, vv
	}

	if vIsLiteral && !literalValued {
		return te.compileStructuredLiteral(ctx, eIdent, aIdent, vLiteral, assert)
	}
	if vIsLiteral && literalValued {
		return []Op{{E: eIdent, A: aIdent, V: vLiteral, O: assert}}, nil
	}
	if literalValued {
		return nil, &maggtomic.InvalidStatementError{E: triple.E, A: triple.A, V: triple.V, Reason: "reserved literal-valued attribute requires a primitive literal value"}
	}
	if vURI != "" {
		ids, err := te.resolver.IdsFor(ctx, []string{vURI})
		if err != nil {
			return nil, err
		}
		vIdent = ids[vURI]
	} else if !vIsIdent {
		return nil, &maggtomic.InvalidStatementError{E: triple.E, A: triple.A, V: triple.V, Reason: "value is neither a resource nor a literal"}
	}
	return []Op{{E: eIdent, A: aIdent, V: vIdent, O: assert}}, nil
}

func (te *TransactionEngine) compileStructuredLiteral(ctx context.Context, eIdent, aIdent maggtomic.Ident, literal maggtomic.Value, assert bool) ([]Op, error) {
	if assert {
		s := maggtomic.FreshIdent()
		decoded, err := allocateShareableID(ctx, te.store)
		if err != nil {
			return nil, err
		}
		return []Op{
			{E: eIdent, A: aIdent, V: s, O: true},
			{E: s, A: maggtomic.OidQudtValue, V: literal, O: true},
			{E: s, A: maggtomic.OidVaemID, V: decoded, O: true},
		}, nil
	}

	s, found, err := te.findStructuredValue(ctx, eIdent, aIdent, literal)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &maggtomic.InvalidStatementError{Reason: "no matching structured-literal statement to retract"}
	}
	return []Op{{E: eIdent, A: aIdent, V: s, O: false}}, nil
}

// findStructuredValue locates the structured-value entity an earlier
// Assert fabricated for (eIdent, aIdent, literal), scanning eIdent's live
// aIdent-valued datoms and comparing each candidate's qudt:value. The
// cursor is t-descending, so the first datom seen for a candidate is its
// current state; candidates whose latest datom is a retraction are skipped.
func (te *TransactionEngine) findStructuredValue(ctx context.Context, eIdent, aIdent maggtomic.Ident, literal maggtomic.Value) (maggtomic.Ident, bool, error) {
	cur, err := te.store.Find(ctx, Filter{E: &eIdent, A: &aIdent})
	if err != nil {
		return maggtomic.NilIdent, false, err
	}
	defer cur.Close(ctx)

	seen := make(map[maggtomic.Ident]bool)
	for cur.Next(ctx) {
		d := cur.Datom()
		s, ok := d.V.(maggtomic.Ident)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		if !d.O {
			continue
		}
		match, err := te.structuredValueMatches(ctx, s, literal)
		if err != nil {
			return maggtomic.NilIdent, false, err
		}
		if match {
			return s, true, nil
		}
	}
	return maggtomic.NilIdent, false, cur.Err()
}

func (te *TransactionEngine) structuredValueMatches(ctx context.Context, s maggtomic.Ident, literal maggtomic.Value) (bool, error) {
	vcur, err := te.store.Find(ctx, Filter{E: &s, A: &maggtomic.OidQudtValue})
	if err != nil {
		return false, err
	}
	defer vcur.Close(ctx)
	for vcur.Next(ctx) {
		if maggtomic.ValuesEqual(vcur.Datom().V, literal) {
			return true, nil
		}
	}
	return false, vcur.Err()
}

// Transact atomically persists the flattened operations of one or more
// compiled statements as a single transaction (spec.md §4.5 batch
// finalisation): it mints t, allocates t's shareable ID, appends the two
// reifying datoms, and writes everything through one
// DatomStore.InsertBatch call.
//
// Idempotent re-assertion is left to the caller (spec.md §9's Open
// Question is resolved conservatively here): Transact never compares a
// new Op against the latest existing datom for (e, a) and always emits
// it.
func (te *TransactionEngine) Transact(ctx context.Context, opGroups ...[]Op) (maggtomic.Ident, error) {
	var ops []Op
	for _, g := range opGroups {
		ops = append(ops, g...)
	}
	if len(ops) == 0 {
		return maggtomic.NilIdent, fmt.Errorf("maggtomic: transact called with no operations")
	}

	opID := uuid.New().String()
	t := maggtomic.FreshIdent()
	decoded, err := allocateShareableID(ctx, te.store)
	if err != nil {
		return maggtomic.NilIdent, err
	}

	datoms := make([]maggtomic.Datom, 0, len(ops)+2)
	for _, op := range ops {
		datoms = append(datoms, maggtomic.Datom{E: op.E, A: op.A, V: op.V, T: t, O: op.O})
	}
	datoms = append(datoms,
		maggtomic.Datom{E: t, A: maggtomic.OidGeneratedAtTime, V: maggtomic.InstantOf(t), T: t, O: true},
		maggtomic.Datom{E: t, A: maggtomic.OidVaemID, V: decoded, T: t, O: true},
	)

	if _, err := te.store.InsertBatch(ctx, datoms); err != nil {
		te.log.WithError(err).WithFields(logrus.Fields{"t": t.Hex(), "op_id": opID}).Error("transaction rejected")
		return maggtomic.NilIdent, err
	}
	te.log.WithFields(logrus.Fields{
		"t":         t.Hex(),
		"op_id":     opID,
		"shareable": maggtomic.EncodeShareableID(uint64(decoded)),
		"datoms":    len(datoms),
	}).Debug("transaction committed")
	return t, nil
}

func expandTerm(v interface{}, prefixes map[string]string) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return maggtomic.PrefixExpand([]string{s}, prefixes)[0]
}

func asResourceTerm(v interface{}) (maggtomic.Ident, string, error) {
	switch vv := v.(type) {
	case maggtomic.Ident:
		return vv, "", nil
	case string:
		return maggtomic.NilIdent, vv, nil
	default:
		return maggtomic.NilIdent, "", fmt.Errorf("got %T", v)
	}
}
