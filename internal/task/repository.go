package task

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

// Repository stores tasks. FindByID returns (nil, nil) when nothing matches.
type Repository interface {
	FindByUser(ctx context.Context, userID string) ([]Task, error)
	FindByID(ctx context.Context, id string) (*Task, error)
	Insert(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(Collection)}
}

func (r *MongoRepository) FindByUser(ctx context.Context, userID string) ([]Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "deadline", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	tasks := []Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *MongoRepository) Insert(ctx context.Context, t *Task) error {
	_, err := r.collection.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *MongoRepository) Update(ctx context.Context, t *Task) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
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

// MemoryRepository keeps tasks in process memory.
type MemoryRepository struct {
	table *memstore.Table[Task]
}

func NewMemoryRepository(publisher realtime.Publisher) *MemoryRepository {
	return &MemoryRepository{table: memstore.NewTable(Collection, func(t Task) string { return t.ID }, publisher)}
}

func (r *MemoryRepository) FindByUser(ctx context.Context, userID string) ([]Task, error) {
	tasks := r.table.Select(func(t Task) bool { return t.UserID == userID })
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(tasks[j].Deadline) })
	return tasks, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	t, ok := r.table.Get(id)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, t *Task) error {
	return r.table.Insert(*t)
}

func (r *MemoryRepository) Update(ctx context.Context, t *Task) error {
	return r.table.Put(*t)
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	return r.table.Delete(id)
}
