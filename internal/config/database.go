package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBClient(lc fx.Lifecycle, s *Settings, logger *zap.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(s.MongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, errors.Wrap(err, "ping MongoDB")
	}
	logger.Info("Connected to MongoDB", zap.String("database", s.MongoDatabase))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing MongoDB connection")
			return client.Disconnect(ctx)
		},
	})
	db := client.Database(s.MongoDatabase)
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

// IndexSpec is one index to create on startup.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
}

// StoreIndexes are the indexes the repositories rely on.
var StoreIndexes = []IndexSpec{
	{Collection: "users", Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
	{Collection: "tasks", Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "deadline", Value: 1}}},
	{Collection: "notifications", Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	{Collection: "timetable_entries", Keys: bson.D{{Key: "day", Value: 1}, {Key: "start_time", Value: 1}}},
	{Collection: "notices", Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}},
	{Collection: "events", Keys: bson.D{{Key: "date", Value: 1}}},
}

// EnsureIndexes creates every index in specs.
func EnsureIndexes(ctx context.Context, db *mongo.Database, specs []IndexSpec, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, spec := range specs {
		model := mongo.IndexModel{Keys: spec.Keys}
		if spec.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		name, err := db.Collection(spec.Collection).Indexes().CreateOne(ctx, model)
		if err != nil {
			return errors.Wrapf(err, "create index on %s", spec.Collection)
		}
		logger.Debug("Index ready", zap.String("collection", spec.Collection), zap.String("index", name))
	}
	return nil
}

// NewRedisClient connects to REDIS_URL. It returns nil when no URL is configured.
func NewRedisClient(lc fx.Lifecycle, s *Settings, logger *zap.Logger) (*redis.Client, error) {
	if s.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping Redis")
	}
	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// OpenBolt opens the local bbolt file at BOLT_PATH, creating its directory.
func OpenBolt(lc fx.Lifecycle, s *Settings, logger *zap.Logger) (*bbolt.DB, error) {
	if dir := filepath.Dir(s.BoltPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create bolt directory")
		}
	}
	db, err := bbolt.Open(s.BoltPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.BoltPath)
	}
	logger.Info("Opened bolt store", zap.String("path", s.BoltPath))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}
