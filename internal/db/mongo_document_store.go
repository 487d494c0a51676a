package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// MongoDocumentStore implements DocumentStore on a MongoDB database.
// Subscribe requires change streams (replica set or sharded cluster).
type MongoDocumentStore struct {
	db *mongo.Database
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

// CreateRecord inserts fields under a fresh SixID, regenerating the id on duplicate key.
func (s *MongoDocumentStore) CreateRecord(ctx context.Context, collection string, fields bson.M) (utils.SixID, error) {
	coll := s.db.Collection(collection)

	doc := make(bson.M, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}

	var id utils.SixID
	err := Try(func() error {
		id = utils.NewSixID()
		doc["_id"] = id
		_, insertErr := coll.InsertOne(ctx, doc)
		return insertErr
	})
	if err != nil {
		return utils.SixID{}, fmt.Errorf("failed to insert into %s (last attempted ID: %s): %w", collection, id.String(), err)
	}
	return id, nil
}

func (s *MongoDocumentStore) PatchRecord(ctx context.Context, collection string, id utils.SixID, fields bson.M) error {
	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("db error patching %s %s: %w", collection, id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *MongoDocumentStore) PatchRecordIf(ctx context.Context, collection string, id utils.SixID, expect bson.M, fields bson.M) error {
	filter := bson.M{}
	for k, v := range expect {
		filter[k] = v
	}
	filter["_id"] = id

	coll := s.db.Collection(collection)
	result, err := coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("db error patching %s %s: %w", collection, id.String(), err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("db error checking %s %s after a missed patch: %w", collection, id.String(), err)
	}
	if n == 0 {
		return mongo.ErrNoDocuments
	}
	return ErrStaleRecord
}

func (s *MongoDocumentStore) DeleteRecord(ctx context.Context, collection string, id utils.SixID) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("db error deleting %s %s: %w", collection, id.String(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *MongoDocumentStore) DeleteRecords(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if filter == nil {
		return 0, errors.New("refusing to delete with an empty filter")
	}
	result, err := s.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("db error deleting from %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (s *MongoDocumentStore) FindRecord(ctx context.Context, collection string, id utils.SixID) (bson.Raw, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding %s by ID %s: %w", collection, id.String(), err)
	}
	return raw, nil
}

func (s *MongoDocumentStore) FindRecords(ctx context.Context, collection string, filter bson.M, order Order) ([]bson.Raw, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if order.Key != "" {
		direction := 1
		if order.Descending {
			direction = -1
		}
		opts.SetSort(bson.D{{Key: order.Key, Value: direction}})
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	records := []bson.Raw{}
	for cursor.Next(ctx) {
		// cursor.Current is reused by the driver on the next batch.
		records = append(records, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s cursor: %w", collection, err)
	}
	return records, nil
}

// Subscribe opens a change stream first and then reads the initial snapshot, so no change between the two is missed.
// Events already buffered in the stream are coalesced into a single re-query.
func (s *MongoDocumentStore) Subscribe(ctx context.Context, collection string, order Order) (<-chan SnapshotEvent, error) {
	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream on %s: %w", collection, err)
	}

	out := make(chan SnapshotEvent, 1)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		send := func(ev SnapshotEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			records, err := s.FindRecords(ctx, collection, nil, order)
			if err != nil {
				if ctx.Err() == nil {
					send(SnapshotEvent{Err: err})
				}
				return
			}
			if !send(SnapshotEvent{Records: records}) {
				return
			}

			if !stream.Next(ctx) {
				if ctx.Err() != nil {
					return
				}
				streamErr := stream.Err()
				if streamErr == nil {
					streamErr = fmt.Errorf("change stream on %s closed", collection)
				}
				log.Printf("Change stream on %s ended: %v", collection, streamErr)
				send(SnapshotEvent{Err: streamErr})
				return
			}
			for stream.RemainingBatchLength() > 0 {
				if !stream.Next(ctx) {
					break
				}
			}
		}
	}()
	return out, nil
}

func (s *MongoDocumentStore) AtomicIncrement(ctx context.Context, collection string, id utils.SixID, field string, delta int64) error {
	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("db error incrementing %s on %s %s: %w", field, collection, id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
