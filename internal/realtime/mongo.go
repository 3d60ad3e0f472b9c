package realtime

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoSubscriber opens MongoDB change streams. It needs a replica set or a sharded cluster.
type MongoSubscriber struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoSubscriber creates a subscriber over db.
func NewMongoSubscriber(db *mongo.Database, logger *zap.Logger) *MongoSubscriber {
	return &MongoSubscriber{db: db, logger: logger}
}

type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	DocumentKey   bson.Raw `bson:"documentKey"`
}

var operationTypes = map[EventType][]string{
	Insert: {"insert"},
	Update: {"update", "replace"},
	Delete: {"delete"},
}

func (m *MongoSubscriber) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := m.db.Collection(table).Watch(streamCtx, pipeline(filter),
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := newSubscription(table, subscriptionBuffer)
	sub.stop = cancel

	go func() {
		defer close(sub.events)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ce changeEvent
			if err := stream.Decode(&ce); err != nil {
				m.logger.Warn("realtime: undecodable change event", zap.String("table", table), zap.Error(err))
				continue
			}
			ev := Event{Table: table, Type: eventType(ce.OperationType), New: ce.FullDocument, Old: ce.DocumentKey}
			select {
			case sub.events <- ev:
			case <-streamCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			m.logger.Error("realtime: change stream closed", zap.String("table", table), zap.Error(err))
		}
	}()
	return sub, nil
}

func eventType(op string) EventType {
	switch op {
	case "insert":
		return Insert
	case "delete":
		return Delete
	}
	return Update
}

func pipeline(filter Filter) mongo.Pipeline {
	match := bson.D{}
	ops := []string{}
	for _, t := range filter.Events {
		ops = append(ops, operationTypes[t]...)
	}
	if len(ops) == 0 {
		ops = []string{"insert", "update", "replace", "delete"}
	}
	match = append(match, bson.E{Key: "operationType", Value: bson.M{"$in": ops}})
	for k, v := range filter.Match {
		match = append(match, bson.E{Key: "fullDocument." + k, Value: v})
	}
	return mongo.Pipeline{{{Key: "$match", Value: match}}}
}
