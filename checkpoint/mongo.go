package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps checkpoints in one collection, one document per (source ID, locale).
type MongoStore struct {
	Client     *mongo.Client
	Collection *mongo.Collection
}

type mongoCheckpoint struct {
	SourceID  string    `bson:"sourceId"`
	Locale    string    `bson:"locale"`
	Checksum  string    `bson:"checksum"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewMongoStore connects to uri and uses database.collection, e.g. "sync.checkpoints".
func NewMongoStore(ctx context.Context, uri string, database string, collection string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: couldn't connect to mongo: %w", err)
	}
	return newMongoStore(ctx, client, database, collection)
}

// newMongoStore checks client and indexes the collection.  client is disconnected when that
// fails.
func newMongoStore(ctx context.Context, client *mongo.Client, database string, collection string) (*MongoStore, error) {
	if err := client.Ping(ctx, nil); err != nil {
		disconnect(client)
		return nil, fmt.Errorf("checkpoint: couldn't ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sourceId", Value: 1}, {Key: "locale", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		disconnect(client)
		return nil, fmt.Errorf("checkpoint: couldn't create index: %w", err)
	}

	return &MongoStore{Client: client, Collection: coll}, nil
}

// disconnect gets its own deadline, the setup one has usually run out by now.
func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}

func filterFor(key Key) bson.M {
	return bson.M{"sourceId": key.SourceID, "locale": key.Locale}
}

func (s *MongoStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var doc mongoCheckpoint
	err := s.Collection.FindOne(ctx, filterFor(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint: couldn't find %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return doc.Checksum, true, nil
}

func (s *MongoStore) Put(ctx context.Context, key Key, checksum string) error {
	update := bson.M{"$set": mongoCheckpoint{
		SourceID:  key.SourceID,
		Locale:    key.Locale,
		Checksum:  checksum,
		UpdatedAt: time.Now().UTC(),
	}}
	_, err := s.Collection.UpdateOne(ctx, filterFor(key), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("checkpoint: couldn't upsert %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.Collection.DeleteOne(ctx, filterFor(key)); err != nil {
		return fmt.Errorf("checkpoint: couldn't delete %s/%s: %w", key.SourceID, key.Locale, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}
