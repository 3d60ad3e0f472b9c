package notice

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"StudySync/internal/apperr"
	"StudySync/internal/memstore"
	"StudySync/internal/realtime"
)

// Repository stores notices. FindByID returns (nil, nil) when nothing matches.
type Repository interface {
	FindAll(ctx context.Context) ([]Notice, error)
	FindActive(ctx context.Context) ([]Notice, error)
	FindByID(ctx context.Context, id string) (*Notice, error)
	Insert(ctx context.Context, n *Notice) error
	Update(ctx context.Context, n *Notice) error
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(Collection)}
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M) ([]Notice, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	ns := []Notice{}
	if err := cursor.All(ctx, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *MongoRepository) FindAll(ctx context.Context) ([]Notice, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoRepository) FindActive(ctx context.Context) ([]Notice, error) {
	return r.find(ctx, bson.M{"is_active": true})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*Notice, error) {
	var n Notice
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *MongoRepository) Insert(ctx context.Context, n *Notice) error {
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, n *Notice) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": n.ID}, n)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// MemoryRepository keeps notices in process memory.
type MemoryRepository struct {
	table *memstore.Table[Notice]
}

func NewMemoryRepository(publisher realtime.Publisher) *MemoryRepository {
	return &MemoryRepository{table: memstore.NewTable(Collection, func(n Notice) string { return n.ID }, publisher)}
}

func newestFirst(ns []Notice) []Notice {
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
	return ns
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]Notice, error) {
	return newestFirst(r.table.Select(nil)), nil
}

func (r *MemoryRepository) FindActive(ctx context.Context) ([]Notice, error) {
	return newestFirst(r.table.Select(func(n Notice) bool { return n.IsActive })), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Notice, error) {
	n, ok := r.table.Get(id)
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, n *Notice) error {
	return r.table.Insert(*n)
}

func (r *MemoryRepository) Update(ctx context.Context, n *Notice) error {
	return r.table.Put(*n)
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	return r.table.Delete(id)
}
