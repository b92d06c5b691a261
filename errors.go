package maggtomic

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core (spec.md §7). Callers match on these
// with errors.Is; the wrapping error carries the offending payload so the
// caller retains full context.
var (
	ErrInvalidResource      = errors.New("maggtomic: invalid resource")
	ErrInvalidStatement     = errors.New("maggtomic: invalid statement")
	ErrInvalidIdentifier    = errors.New("maggtomic: invalid identifier")
	ErrInvalidQuery         = errors.New("maggtomic: invalid query")
	ErrWriteRejected        = errors.New("maggtomic: write rejected")
	ErrUnresolvableIdent    = errors.New("maggtomic: unresolvable ident")
	ErrUnsupportedPredicate = errors.New("maggtomic: unsupported predicate")
)

// InvalidResourceError reports a resource that fails the URI syntax check.
type InvalidResourceError struct {
	Resource string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("%v: %q is not a URI", ErrInvalidResource, e.Resource)
}

func (e *InvalidResourceError) Unwrap() error { return ErrInvalidResource }

// InvalidStatementError reports a user-level triple that violates the
// structured-value or non-literal-entity/attribute invariants.
type InvalidStatementError struct {
	E, A, V interface{}
	Reason  string
}

func (e *InvalidStatementError) Error() string {
	return fmt.Sprintf("%v: (%v, %v, %v): %s", ErrInvalidStatement, e.E, e.A, e.V, e.Reason)
}

func (e *InvalidStatementError) Unwrap() error { return ErrInvalidStatement }

// WriteRejectedError reports a store-level write failure: schema
// validation, an unacknowledged write, or a row-count mismatch.
type WriteRejectedError struct {
	Reason string
	Cause  error
}

func (e *WriteRejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", ErrWriteRejected, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%v: %s", ErrWriteRejected, e.Reason)
}

func (e *WriteRejectedError) Unwrap() error { return ErrWriteRejected }

// UnresolvableIdentError reports an Ident with neither a URI nor a
// shareable-ID datom during reverse-reference materialisation; per
// spec.md §7 this indicates corruption, not a user error.
type UnresolvableIdentError struct {
	Ident Ident
}

func (e *UnresolvableIdentError) Error() string {
	return fmt.Sprintf("%v: %s has no uri-ref or vaem-id datom", ErrUnresolvableIdent, e.Ident.Hex())
}

func (e *UnresolvableIdentError) Unwrap() error { return ErrUnresolvableIdent }

// InvalidQueryError reports a malformed graph-pattern clause.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidQuery, e.Reason)
}

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }

// UnsupportedPredicateError reports an unknown scalar-predicate operator
// in a query clause's {?var: {Operator: Value}} term (spec.md §4.7).
type UnsupportedPredicateError struct {
	Operator string
}

func (e *UnsupportedPredicateError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnsupportedPredicate, e.Operator)
}

func (e *UnsupportedPredicateError) Unwrap() error { return ErrUnsupportedPredicate }
