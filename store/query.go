package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/polyneme/maggtomic"
)

// TermKind tags a compiled clause term (spec.md §9: "dynamic dispatch of
// term kinds").
type TermKind int

const (
	TermVar TermKind = iota
	TermGround
	TermProbe
)

// Term is one position (e, a, or v) of a query clause (spec.md §6):
// either a variable, a ground URI/CURIE/Ident, or a {?var: predicate}
// probe that binds a variable to the field's value while constraining it.
type Term struct {
	Kind      TermKind
	Var       string                 // TermVar, TermProbe
	Ground    interface{}            // TermGround: a URI/CURIE string, an Ident, or (v only) a literal
	Predicate map[string]interface{} // TermProbe: operator -> operand
}

// Clause is one (e, a, v) pattern in a graph-pattern query (spec.md §6).
type Clause [3]Term

// QuerySpec is the compiled input to QueryEvaluator.Query (spec.md §6).
type QuerySpec struct {
	Where    []Clause
	Select   []string // ?var names; empty means "all bound vars"
	Prefixes map[string]string
}

// Binding maps user ?var names to reference-materialised result values:
// a compacted CURIE/URI, a "_:"+shareable-id string, or a literal
// (spec.md §4.7 steps 5-7).
type Binding map[string]interface{}

// QueryEvaluator compiles a QuerySpec into per-clause index probes
// against an AsOfView, unifies bindings across clauses, and materialises
// the projected result (spec.md §4.7).
type QueryEvaluator struct {
	resolver *ResourceResolver
}

// NewQueryEvaluator builds an evaluator resolving resource references
// through r.
func NewQueryEvaluator(r *ResourceResolver) *QueryEvaluator {
	return &QueryEvaluator{resolver: r}
}

// Query evaluates spec against view, returning one Binding per result
// row (spec.md §4.7).
func (qe *QueryEvaluator) Query(ctx context.Context, view *AsOfView, spec QuerySpec) ([]Binding, error) {
	if len(spec.Where) == 0 {
		return nil, &maggtomic.InvalidQueryError{Reason: "where must have at least one clause"}
	}

	clauseBindings := make([][]identBinding, len(spec.Where))
	for i, clause := range spec.Where {
		compiled, err := qe.compileClause(ctx, clause, spec.Prefixes)
		if err != nil {
			return nil, err
		}
		rows, err := qe.probe(ctx, view, compiled)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		clauseBindings[i] = rows
	}

	unified := unify(clauseBindings)

	selected := spec.Select
	if len(selected) == 0 {
		selected = allVars(spec.Where)
	}

	out := make([]Binding, 0, len(unified))
	for _, row := range unified {
		b, err := qe.materialize(ctx, row, selected, spec.Prefixes)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// identBinding maps ?var names to their resolved, pre-materialisation
// Value (an Ident, or a literal for qudt:value-style positions).
type identBinding map[string]maggtomic.Value

type compiledTerm struct {
	kind      TermKind
	varName   string
	ground    maggtomic.Value
	predicate map[string]interface{} // set only for TermProbe on e/a, applied client-side (see probe)
}

type compiledClause struct {
	e, a, v compiledTerm
	filter  Filter
}

var validPredicateOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true, "$in": true,
}

func (qe *QueryEvaluator) compileClause(ctx context.Context, clause Clause, prefixes map[string]string) (compiledClause, error) {
	var cc compiledClause
	terms := [3]*compiledTerm{&cc.e, &cc.a, &cc.v}
	allowLiteral := [3]bool{false, false, true}

	for i := 0; i < 3; i++ {
		t := clause[i]
		switch t.Kind {
		case TermVar:
			if t.Var == "" {
				return compiledClause{}, &maggtomic.InvalidQueryError{Reason: "variable term missing a name"}
			}
			*terms[i] = compiledTerm{kind: TermVar, varName: t.Var}
		case TermGround:
			resolved, err := resolveGroundValue(ctx, qe.resolver, t.Ground, prefixes, allowLiteral[i])
			if err != nil {
				return compiledClause{}, err
			}
			*terms[i] = compiledTerm{kind: TermGround, ground: resolved}
			setFilterField(&cc.filter, i, resolved)
		case TermProbe:
			if t.Var == "" {
				return compiledClause{}, &maggtomic.InvalidQueryError{Reason: "predicate term missing a variable"}
			}
			pred, err := compilePredicate(ctx, qe.resolver, t.Predicate, prefixes, allowLiteral[i])
			if err != nil {
				return compiledClause{}, err
			}
			*terms[i] = compiledTerm{kind: TermProbe, varName: t.Var}
			if i == 2 {
				cc.filter.VPred = pred
			} else {
				terms[i].predicate = pred
			}
		default:
			return compiledClause{}, &maggtomic.InvalidQueryError{Reason: "malformed clause term"}
		}
	}
	return cc, nil
}

func setFilterField(f *Filter, pos int, v maggtomic.Value) {
	switch pos {
	case 0:
		id, _ := v.(maggtomic.Ident)
		f.E = &id
	case 1:
		id, _ := v.(maggtomic.Ident)
		f.A = &id
	case 2:
		f.V = v
	}
}

func resolveGroundValue(ctx context.Context, resolver *ResourceResolver, raw interface{}, prefixes map[string]string, allowLiteral bool) (maggtomic.Value, error) {
	switch v := raw.(type) {
	case maggtomic.Ident:
		return v, nil
	case string:
		expanded := maggtomic.PrefixExpand([]string{v}, prefixes)[0]
		if maggtomic.IsURI(expanded) {
			ids, err := resolver.IdsFor(ctx, []string{expanded})
			if err != nil {
				return nil, err
			}
			return ids[expanded], nil
		}
		if !allowLiteral {
			return nil, &maggtomic.InvalidQueryError{Reason: fmt.Sprintf("%q is not a resolvable resource", v)}
		}
		return expanded, nil
	default:
		if !allowLiteral {
			return nil, &maggtomic.InvalidQueryError{Reason: fmt.Sprintf("ground term %v must be a URI/CURIE or Ident", raw)}
		}
		return v, nil
	}
}

func compilePredicate(ctx context.Context, resolver *ResourceResolver, pred map[string]interface{}, prefixes map[string]string, allowLiteral bool) (bson.M, error) {
	out := bson.M{}
	for op, operand := range pred {
		if !validPredicateOps[op] {
			return nil, &maggtomic.UnsupportedPredicateError{Operator: op}
		}
		if op == "$in" {
			vals, ok := operand.([]interface{})
			if !ok {
				return nil, &maggtomic.InvalidQueryError{Reason: "$in operand must be a list"}
			}
			resolved := make([]maggtomic.Value, len(vals))
			for i, v := range vals {
				rv, err := resolveGroundValue(ctx, resolver, v, prefixes, allowLiteral)
				if err != nil {
					return nil, err
				}
				resolved[i] = rv
			}
			out[op] = resolved
			continue
		}
		rv, err := resolveGroundValue(ctx, resolver, operand, prefixes, allowLiteral)
		if err != nil {
			return nil, err
		}
		out[op] = rv
	}
	return out, nil
}

// probe builds a cursor from cc's filter, folds each (e, a, v) key down
// to its most-recent-t datom (the cursor is t-descending, so the first
// occurrence of a key wins), and discards keys whose most recent state is
// a retraction (spec.md §5, P7).
func (qe *QueryEvaluator) probe(ctx context.Context, view *AsOfView, cc compiledClause) ([]identBinding, error) {
	cur, err := view.Extend(ctx, cc.filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	type key struct {
		e, a maggtomic.Ident
		v    interface{}
	}
	latest := make(map[key]maggtomic.Datom)
	var order []key
	for cur.Next(ctx) {
		d := cur.Datom()
		k := key{d.E, d.A, datomKeyValue(d.V)}
		if _, seen := latest[k]; !seen {
			latest[k] = d
			order = append(order, k)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	var rows []identBinding
	for _, k := range order {
		d := latest[k]
		if !d.O {
			continue
		}
		row, ok := bindRow(cc, d)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func datomKeyValue(v maggtomic.Value) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UnixNano()
	}
	return v
}

func bindRow(cc compiledClause, d maggtomic.Datom) (identBinding, bool) {
	row := identBinding{}
	fields := [3]maggtomic.Value{d.E, d.A, d.V}
	terms := [3]compiledTerm{cc.e, cc.a, cc.v}
	for i, term := range terms {
		switch term.kind {
		case TermVar:
			row[term.varName] = fields[i]
		case TermGround:
			if !maggtomic.ValuesEqual(term.ground, fields[i]) {
				return nil, false
			}
		case TermProbe:
			if term.predicate != nil {
				ok, err := evalPredicate(fields[i], term.predicate)
				if err != nil || !ok {
					return nil, false
				}
			}
			row[term.varName] = fields[i]
		}
	}
	return row, true
}

func evalPredicate(actual maggtomic.Value, pred map[string]interface{}) (bool, error) {
	for op, operand := range pred {
		switch op {
		case "$eq":
			if !maggtomic.ValuesEqual(actual, operand) {
				return false, nil
			}
		case "$ne":
			if maggtomic.ValuesEqual(actual, operand) {
				return false, nil
			}
		case "$gt":
			if maggtomic.CompareValues(actual, operand) <= 0 {
				return false, nil
			}
		case "$gte":
			if maggtomic.CompareValues(actual, operand) < 0 {
				return false, nil
			}
		case "$lt":
			if maggtomic.CompareValues(actual, operand) >= 0 {
				return false, nil
			}
		case "$lte":
			if maggtomic.CompareValues(actual, operand) > 0 {
				return false, nil
			}
		case "$in":
			vals, _ := operand.([]maggtomic.Value)
			found := false
			for _, v := range vals {
				if maggtomic.ValuesEqual(actual, v) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, &maggtomic.UnsupportedPredicateError{Operator: op}
		}
	}
	return true, nil
}

// unify left-folds per-clause binding lists with a merge that takes the
// Cartesian product and keeps only pairs consistent on shared variables
// (spec.md §4.7 step 4).
func unify(clauseBindings [][]identBinding) []identBinding {
	if len(clauseBindings) == 0 {
		return nil
	}
	acc := clauseBindings[0]
	for _, next := range clauseBindings[1:] {
		var merged []identBinding
		for _, a := range acc {
			for _, b := range next {
				if m, ok := mergeBindings(a, b); ok {
					merged = append(merged, m)
				}
			}
		}
		acc = merged
		if len(acc) == 0 {
			break
		}
	}
	return acc
}

func mergeBindings(a, b identBinding) (identBinding, bool) {
	out := make(identBinding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok {
			if !maggtomic.ValuesEqual(existing, v) {
				return nil, false
			}
			continue
		}
		out[k] = v
	}
	return out, true
}

func allVars(where []Clause) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range where {
		for _, t := range c {
			if (t.Kind == TermVar || t.Kind == TermProbe) && t.Var != "" && !seen[t.Var] {
				seen[t.Var] = true
				out = append(out, t.Var)
			}
		}
	}
	return out
}

// materialize resolves any Ident-valued binding back to a reference
// (spec.md §4.7 steps 6-7): a URI (compacted to its shortest-matching
// CURIE) or, absent one, "_:"+shareable-id. Literal values pass through
// unchanged.
func (qe *QueryEvaluator) materialize(ctx context.Context, row identBinding, selected []string, prefixes map[string]string) (Binding, error) {
	var idents []maggtomic.Ident
	for _, name := range selected {
		if id, ok := row[name].(maggtomic.Ident); ok {
			idents = append(idents, id)
		}
	}
	refs, err := qe.resolver.RefsFor(ctx, idents)
	if err != nil {
		return nil, err
	}

	out := make(Binding, len(selected))
	for _, name := range selected {
		v, ok := row[name]
		if !ok {
			continue
		}
		id, isIdent := v.(maggtomic.Ident)
		if !isIdent {
			out[name] = v
			continue
		}
		ref := refs[id]
		if strings.HasPrefix(ref, "_:") {
			out[name] = ref
		} else {
			out[name] = maggtomic.PrefixCompact(ref, prefixes)
		}
	}
	return out, nil
}
