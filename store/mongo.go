package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/polyneme/maggtomic"
)

// mongoCollection adapts a live *mongo.Collection to the narrow
// collection surface DatomStore depends on (spec.md §4.4, §6). It
// expects the collection's client to already carry a majority, journaled
// write concern (spec.md §4.4's "observable contract"); this type does
// not override it per call.
type mongoCollection struct {
	coll *mongo.Collection
}

func newMongoCollection(coll *mongo.Collection) *mongoCollection {
	return &mongoCollection{coll: coll}
}

func (m *mongoCollection) insertMany(ctx context.Context, docs []document) (int, error) {
	items := make([]interface{}, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	res, err := m.coll.InsertMany(ctx, items, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

func (m *mongoCollection) find(ctx context.Context, filter bson.M) (Cursor, error) {
	// t is always sorted descending: the most recent transaction for a
	// given key prefix comes first (spec.md §4.4), which the query
	// evaluator's retraction fold (spec.md §5, §8 P7) depends on.
	cur, err := m.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "t", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (m *mongoCollection) findLatestByV(ctx context.Context, filter bson.M) (document, bool, error) {
	var doc document
	err := m.coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "v", Value: -1}, {Key: "t", Value: -1}})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return document{}, false, nil
		}
		return document{}, false, err
	}
	return doc, true, nil
}

// ensureSchema creates the collection with its $jsonSchema validator
// (spec.md §6) if it doesn't exist yet, then ensures the five covering
// indexes and the two uniqueness partial indexes (spec.md §4.4) exist.
func (m *mongoCollection) ensureSchema(ctx context.Context) error {
	db := m.coll.Database()
	name := m.coll.Name()

	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(jsonSchemaValidator))
	if err != nil {
		cmdErr, ok := err.(mongo.CommandError)
		if !ok || !isNamespaceExists(cmdErr) {
			return err
		}
	}

	_, err = m.coll.Indexes().CreateMany(ctx, indexModels())
	return err
}

func isNamespaceExists(err mongo.CommandError) bool {
	return err.Code == 48 || err.Name == "NamespaceExists"
}

// jsonSchemaValidator is the document-level schema validator (spec.md
// §6): exactly the five logical fields plus the synthetic _id, with no
// additional properties permitted.
var jsonSchemaValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "e", "a", "v", "t", "o"},
		"additionalProperties": false,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"e":   bson.M{"bsonType": "objectId"},
			"a":   bson.M{"bsonType": "objectId"},
			"v": bson.M{
				"bsonType": []string{"objectId", "string", "long", "int", "double", "bool", "date"},
			},
			"t": bson.M{"bsonType": "objectId"},
			"o": bson.M{"bsonType": "bool"},
		},
	},
}

// indexModels builds the five covering indexes of spec.md §4.4 plus the
// two uniqueness partial indexes spec.md §5 names as the resolution to
// the concurrent-minting hazard (I4, I5).
func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "e", Value: 1}, {Key: "a", Value: 1}, {Key: "v", Value: 1}, {Key: "t", Value: -1}, {Key: "o", Value: 1}},
			Options: options.Index().SetName("eavt"),
		},
		{
			Keys:    bson.D{{Key: "a", Value: 1}, {Key: "e", Value: 1}, {Key: "v", Value: 1}, {Key: "t", Value: -1}, {Key: "o", Value: 1}},
			Options: options.Index().SetName("aevt"),
		},
		{
			Keys:    bson.D{{Key: "a", Value: 1}, {Key: "v", Value: 1}, {Key: "e", Value: 1}, {Key: "t", Value: -1}, {Key: "o", Value: 1}},
			Options: options.Index().SetName("avet"),
		},
		{
			Keys: bson.D{{Key: "v", Value: 1}, {Key: "a", Value: 1}, {Key: "e", Value: 1}, {Key: "t", Value: -1}, {Key: "o", Value: 1}},
			Options: options.Index().SetName("vaet").
				SetPartialFilterExpression(bson.M{"v": bson.M{"$type": "objectId"}}),
		},
		{
			Keys:    bson.D{{Key: "t", Value: -1}},
			Options: options.Index().SetName("t_history"),
		},
		{
			Keys: bson.D{{Key: "v", Value: 1}},
			Options: options.Index().SetName("uri_ref_unique").SetUnique(true).
				SetPartialFilterExpression(bson.M{"a": maggtomic.OidURIRef}),
		},
		{
			Keys: bson.D{{Key: "v", Value: 1}},
			Options: options.Index().SetName("vaem_id_unique").SetUnique(true).
				SetPartialFilterExpression(bson.M{"a": maggtomic.OidVaemID}),
		},
	}
}
