package drivers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/creastat/storage/session"
)

// modifiedIndexName is the name of the index EnsureIndexes creates on modified.
const modifiedIndexName = "modified_1"

// mongoAPI is the subset of *mongo.Collection the session collection uses.
type mongoAPI interface {
	FindOneAndUpdate(ctx context.Context, filter any, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error)
}

// mongoRecord is the document layout: { _id, modified, data }.
type mongoRecord struct {
	ID       string        `bson:"_id"`
	Modified bson.DateTime `bson:"modified"`
	Data     string        `bson:"data,omitempty"`
}

// MongoCollection implements session.Collection on a MongoDB collection.
type MongoCollection struct {
	coll    mongoAPI
	indexes func(ctx context.Context) error
}

// NewMongoCollection wraps coll. The caller owns the client coll belongs to.
func NewMongoCollection(coll *mongo.Collection) *MongoCollection {
	return &MongoCollection{
		coll: coll,
		indexes: func(ctx context.Context) error {
			_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys:    bson.D{{Key: "modified", Value: 1}},
				Options: options.Index().SetName(modifiedIndexName),
			})
			return err
		},
	}
}

// EnsureIndexes creates the index on modified that keeps gc off a collection scan.
func (c *MongoCollection) EnsureIndexes(ctx context.Context) error {
	if c.indexes == nil {
		return nil
	}
	if err := c.indexes(ctx); err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

// FindAndTouch implements session.Collection.
// Returns nil if the session is not found (not an error).
func (c *MongoCollection) FindAndTouch(ctx context.Context, id string, now time.Time) (*session.Record, error) {
	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "modified", Value: bson.NewDateTimeFromTime(now)}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoRecord
	err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find and update: %w", err)
	}

	return &session.Record{ID: doc.ID, Modified: doc.Modified.Time(), Data: doc.Data}, nil
}

// Upsert implements session.Collection.
func (c *MongoCollection) Upsert(ctx context.Context, rec session.Record) error {
	filter := bson.D{{Key: "_id", Value: rec.ID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "modified", Value: bson.NewDateTimeFromTime(rec.Modified)},
		{Key: "data", Value: rec.Data},
	}}}

	if _, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

// DeleteOne implements session.Collection.
func (c *MongoCollection) DeleteOne(ctx context.Context, id string) (session.DeleteResult, error) {
	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("mongo delete: %w", err)
	}
	return deleteResult(res), nil
}

// DeleteModifiedBefore implements session.Collection.
func (c *MongoCollection) DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (session.DeleteResult, error) {
	filter := bson.D{{Key: "modified", Value: bson.D{{Key: "$lte", Value: bson.NewDateTimeFromTime(cutoff)}}}}
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("mongo delete many: %w", err)
	}
	return deleteResult(res), nil
}

func deleteResult(res *mongo.DeleteResult) session.DeleteResult {
	if res == nil {
		return session.DeleteResult{}
	}
	return session.DeleteResult{Acknowledged: res.Acknowledged, DeletedCount: res.DeletedCount}
}

var _ session.Collection = (*MongoCollection)(nil)
