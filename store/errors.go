package store

import "fmt"

// duplicateKeyError simulates the error a live MongoDB unique partial
// index (on uri-ref or vaem-id, spec.md §4.4) raises on a conflicting
// insert. DatomStore.InsertBatch wraps it, along with any other backend
// error, as a WriteRejectedError (spec.md §7).
type duplicateKeyError struct {
	field string
	value interface{}
}

func (e *duplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %s: %v", e.field, e.value)
}
