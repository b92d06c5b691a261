package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/polyneme/maggtomic"
)

// memoryCollection is an in-process fake of the collection surface
// DatomStore needs (spec.md §8): enough to exercise insert/find and the
// I4/I5 uniqueness constraints without a live MongoDB. Mirrors the
// teacher's own preference for a small dependency-light fake over a mock
// framework (see datalog/storage/*_test.go exercising BadgerStore
// directly).
type memoryCollection struct {
	mu   sync.Mutex
	docs []document
}

func newMemoryCollection() *memoryCollection {
	return &memoryCollection{}
}

func (c *memoryCollection) ensureSchema(ctx context.Context) error { return nil }

func (c *memoryCollection) insertMany(ctx context.Context, docs []document) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seenURIRef := map[interface{}]bool{}
	seenVaemID := map[interface{}]bool{}
	for _, d := range c.docs {
		if d.A == maggtomic.OidURIRef {
			seenURIRef[d.V] = true
		}
		if d.A == maggtomic.OidVaemID {
			seenVaemID[d.V] = true
		}
	}
	for _, d := range docs {
		if d.A == maggtomic.OidURIRef {
			if seenURIRef[d.V] {
				return 0, &duplicateKeyError{field: "uri-ref", value: d.V}
			}
			seenURIRef[d.V] = true
		}
		if d.A == maggtomic.OidVaemID {
			if seenVaemID[d.V] {
				return 0, &duplicateKeyError{field: "vaem-id", value: d.V}
			}
			seenVaemID[d.V] = true
		}
	}

	c.docs = append(c.docs, docs...)
	return len(docs), nil
}

func (c *memoryCollection) find(ctx context.Context, filter bson.M) (Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []document
	for _, d := range c.docs {
		if matchDoc(d, filter) {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return maggtomic.CompareIdents(matched[i].T, matched[j].T) > 0
	})
	return &memoryCursor{docs: matched}, nil
}

func (c *memoryCollection) findLatestByV(ctx context.Context, filter bson.M) (document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best document
	found := false
	for _, d := range c.docs {
		if !matchDoc(d, filter) {
			continue
		}
		if !found {
			best, found = d, true
			continue
		}
		// Ties on v (generatedAtTime has second granularity) go to the
		// latest t, as a reverse scan of the (a, v, e=t) index would.
		if c := maggtomic.CompareValues(d.V, best.V); c > 0 || (c == 0 && maggtomic.CompareIdents(d.T, best.T) > 0) {
			best = d
		}
	}
	return best, found, nil
}

// memoryCursor walks a pre-materialised, already-filtered document slice,
// matching the shape of *mongo.Cursor closely enough that DatomCursor
// doesn't need to know which backend it's reading from.
type memoryCursor struct {
	docs []document
	idx  int
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	if c.idx >= len(c.docs) {
		return false
	}
	c.idx++
	return true
}

func (c *memoryCursor) Decode(v interface{}) error {
	ptr, ok := v.(*document)
	if !ok {
		return fmt.Errorf("memoryCursor: decode target must be *document, got %T", v)
	}
	*ptr = c.docs[c.idx-1]
	return nil
}

func (c *memoryCursor) Err() error                     { return nil }
func (c *memoryCursor) Close(ctx context.Context) error { return nil }

func matchDoc(doc document, filter bson.M) bool {
	fields := map[string]interface{}{
		"e": doc.E, "a": doc.A, "v": doc.V, "t": doc.T, "o": doc.O,
	}
	for field, constraint := range filter {
		actual, ok := fields[field]
		if !ok {
			return false
		}
		if !matchField(actual, constraint) {
			return false
		}
	}
	return true
}

func matchField(actual interface{}, constraint interface{}) bool {
	if m, ok := constraint.(bson.M); ok {
		for op, operand := range m {
			if !matchOp(actual, op, operand) {
				return false
			}
		}
		return true
	}
	return maggtomic.ValuesEqual(actual, constraint)
}

func matchOp(actual interface{}, op string, operand interface{}) bool {
	switch op {
	case "$eq":
		return maggtomic.ValuesEqual(actual, operand)
	case "$ne":
		return !maggtomic.ValuesEqual(actual, operand)
	case "$gt":
		return maggtomic.CompareValues(actual, operand) > 0
	case "$gte":
		return maggtomic.CompareValues(actual, operand) >= 0
	case "$lt":
		return maggtomic.CompareValues(actual, operand) < 0
	case "$lte":
		return maggtomic.CompareValues(actual, operand) <= 0
	case "$in":
		rv := reflect.ValueOf(operand)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if maggtomic.ValuesEqual(actual, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
