// Package store implements DatomStore (spec.md §4.4) and everything
// that needs a backing collection to operate: ResourceResolver, the
// TransactionEngine, AsOfView, and QueryEvaluator. It is kept separate
// from the root maggtomic package (which holds only pure value types) to
// avoid an import cycle, in the teacher's own root-package/storage-package
// split (datalog holds Datom/Keyword/Value; datalog/storage holds
// Database/Transaction/Matcher).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/polyneme/maggtomic"
)

// DatomStore is the validated, append-only datom set of spec.md §4.4. It
// owns I1/I2 validation and the insert/find surface the rest of the
// engine is built on; the five logical covering indexes are maintained
// by the backing collection (a live MongoDB collection, or the
// in-process fake used by tests).
type DatomStore struct {
	coll collection
	log  *logrus.Entry
}

// NewDatomStore wraps a live MongoDB collection.
func NewDatomStore(coll *mongo.Collection) *DatomStore {
	return &DatomStore{coll: newMongoCollection(coll), log: logEntry()}
}

// NewInMemoryDatomStore returns a DatomStore backed by the in-process
// fake collection, for tests and local experimentation without a live
// MongoDB.
func NewInMemoryDatomStore() *DatomStore {
	return &DatomStore{coll: newMemoryCollection(), log: logEntry()}
}

// Bootstrap ensures the backing collection's schema validator and
// indexes exist, then seeds the four reserved Idents' uri-ref datoms
// plus the reifying datoms of the bootstrap transaction itself (spec.md
// §6, scenario S1). It is meant to run once, against an empty
// collection; calling it again on a non-empty one violates I4/I5 and
// fails with ErrWriteRejected, which is the desired behaviour.
func (s *DatomStore) Bootstrap(ctx context.Context) error {
	if err := s.coll.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	t := maggtomic.FreshIdent()
	decoded, err := allocateShareableID(ctx, s)
	if err != nil {
		return err
	}

	datoms := make([]maggtomic.Datom, 0, len(maggtomic.ReservedURIs)+2)
	for id, uri := range maggtomic.ReservedURIs {
		datoms = append(datoms, maggtomic.Datom{E: id, A: maggtomic.OidURIRef, V: uri, T: t, O: true})
	}
	datoms = append(datoms,
		maggtomic.Datom{E: t, A: maggtomic.OidGeneratedAtTime, V: maggtomic.InstantOf(t), T: t, O: true},
		maggtomic.Datom{E: t, A: maggtomic.OidVaemID, V: decoded, T: t, O: true},
	)

	if _, err := s.InsertBatch(ctx, datoms); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.log.WithField("t", t.Hex()).Info("bootstrapped collection")
	return nil
}

// InsertBatch validates (I1, I2) and atomically inserts datoms that must
// all share one t (spec.md §4.4), returning the backing collection's
// per-row synthetic _id in datom order. It fails with WriteRejectedError
// on a schema violation, a backend write error (including a duplicate-key
// error from the uri-ref/vaem-id uniqueness indexes), or a row-count
// mismatch.
func (s *DatomStore) InsertBatch(ctx context.Context, datoms []maggtomic.Datom) ([]maggtomic.Ident, error) {
	if len(datoms) == 0 {
		return nil, nil
	}

	t := datoms[0].T
	docs := make([]document, len(datoms))
	ids := make([]maggtomic.Ident, len(datoms))
	for i, d := range datoms {
		if err := validateDatom(d); err != nil {
			return nil, &maggtomic.WriteRejectedError{Reason: "schema validation", Cause: err}
		}
		if d.T != t {
			return nil, &maggtomic.WriteRejectedError{Reason: "batch does not share one transaction"}
		}
		id := primitive.NewObjectID()
		ids[i] = id
		docs[i] = document{ID: id, E: d.E, A: d.A, V: d.V, T: d.T, O: d.O}
	}

	n, err := s.coll.insertMany(ctx, docs)
	if err != nil {
		s.log.WithError(err).WithField("t", t.Hex()).Error("insert batch rejected")
		return nil, &maggtomic.WriteRejectedError{Reason: "insert failed", Cause: err}
	}
	if n != len(docs) {
		return nil, &maggtomic.WriteRejectedError{Reason: fmt.Sprintf("inserted %d of %d rows", n, len(docs))}
	}
	s.log.WithFields(logrus.Fields{"t": t.Hex(), "count": len(docs)}).Debug("inserted batch")
	return ids, nil
}

func validateDatom(d maggtomic.Datom) error {
	if d.E == maggtomic.NilIdent || d.A == maggtomic.NilIdent || d.T == maggtomic.NilIdent {
		return fmt.Errorf("e, a, and t must be non-nil idents")
	}
	if !maggtomic.IsLiteralValuedAttribute(d.A) {
		if _, ok := d.V.(maggtomic.Ident); !ok {
			return fmt.Errorf("attribute %s requires an Ident value, got %T (structured-value invariant I2)", d.A.Hex(), d.V)
		}
	}
	return nil
}

// Find delegates filter to the backing collection, which chooses an
// index from its leading constrained-field prefix (spec.md §4.4); no
// ordering guarantee is made beyond what that index provides.
func (s *DatomStore) Find(ctx context.Context, filter Filter) (*DatomCursor, error) {
	cur, err := s.coll.find(ctx, filter.toBSON())
	if err != nil {
		return nil, err
	}
	return &DatomCursor{driver: cur}, nil
}

// LatestTransactionAsOf resolves a wall-clock instant to the most recent
// transaction Ident whose generatedAtTime datom's value is <= tau
// (spec.md §4.6): a single reverse range scan on the
// a=OID_GENERATED_AT_TIME index, first row.
func (s *DatomStore) LatestTransactionAsOf(ctx context.Context, tau time.Time) (maggtomic.Ident, bool, error) {
	filter := Filter{A: &maggtomic.OidGeneratedAtTime, VPred: bson.M{"$lte": tau}}
	doc, found, err := s.coll.findLatestByV(ctx, filter.toBSON())
	if err != nil {
		return maggtomic.NilIdent, false, err
	}
	if !found {
		return maggtomic.NilIdent, false, nil
	}
	return doc.T, true, nil
}

// DatomCursor streams Datoms decoded from the backing collection's raw
// documents.
type DatomCursor struct {
	driver  Cursor
	current document
	decErr  error
}

func (c *DatomCursor) Next(ctx context.Context) bool {
	if !c.driver.Next(ctx) {
		return false
	}
	if err := c.driver.Decode(&c.current); err != nil {
		c.decErr = err
		return false
	}
	return true
}

// Datom returns the Datom most recently yielded by Next.
func (c *DatomCursor) Datom() maggtomic.Datom { return toDatom(c.current) }

func (c *DatomCursor) Err() error {
	if c.decErr != nil {
		return c.decErr
	}
	return c.driver.Err()
}

func (c *DatomCursor) Close(ctx context.Context) error { return c.driver.Close(ctx) }
