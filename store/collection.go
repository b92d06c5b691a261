package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Cursor is the narrow streaming-decode surface DatomStore needs from a
// query result. *mongo.Cursor already satisfies it; the in-memory fake
// implements it directly (spec.md §8: tests run against a fake of just
// this surface, not a mock of the whole driver).
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// collection is the backend DatomStore delegates to: either a live Mongo
// collection or the in-memory fake. insertMany and find are the two
// operations spec.md §4.4 names; findLatestByV is the extra one §4.6's
// as-of cutoff resolution needs (a reverse range scan on v, first row).
type collection interface {
	insertMany(ctx context.Context, docs []document) (int, error)
	find(ctx context.Context, filter bson.M) (Cursor, error)
	findLatestByV(ctx context.Context, filter bson.M) (document, bool, error)
	ensureSchema(ctx context.Context) error
}
