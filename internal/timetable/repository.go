package timetable

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"StudySync/internal/apperr"
	"StudySync/internal/memstore"
	"StudySync/internal/realtime"
)

// Collection is the name of the timetable table.
const Collection = "timetable_entries"

// Repository stores timetable entries.
type Repository interface {
	FindAll(ctx context.Context) ([]Entry, error)
	Insert(ctx context.Context, e *Entry) error
	// InsertMany stores entries and reports how many were written, also on failure.
	InsertMany(ctx context.Context, entries []Entry) (int, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// MongoRepository handles DB operations for timetable entries.
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a repository over the timetable_entries collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(Collection)}
}

func (r *MongoRepository) FindAll(ctx context.Context) ([]Entry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "day", Value: 1}}))
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *MongoRepository) Insert(ctx context.Context, e *Entry) error {
	_, err := r.collection.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrConflict
	}
	return err
}

// InsertMany writes unordered so one bad document does not hide how many others landed.
func (r *MongoRepository) InsertMany(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(entries))
	for i := range entries {
		docs[i] = entries[i]
	}
	res, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(docs), nil
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		return len(docs) - len(bwe.WriteErrors), err
	}
	if res != nil {
		return len(res.InsertedIDs), err
	}
	return 0, err
}

func (r *MongoRepository) Update(ctx context.Context, e *Entry) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
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

func (r *MongoRepository) DeleteAll(ctx context.Context) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{})
	return err
}

// MemoryRepository keeps timetable entries in process memory.
type MemoryRepository struct {
	table *memstore.Table[Entry]
}

// NewMemoryRepository creates an empty in-memory repository. publisher may be nil.
func NewMemoryRepository(publisher realtime.Publisher) *MemoryRepository {
	return &MemoryRepository{
		table: memstore.NewTable(Collection, func(e Entry) string { return e.ID }, publisher),
	}
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]Entry, error) {
	return r.table.Select(nil), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, e *Entry) error {
	return r.table.Insert(*e)
}

func (r *MemoryRepository) InsertMany(ctx context.Context, entries []Entry) (int, error) {
	if err := r.table.InsertMany(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (r *MemoryRepository) Update(ctx context.Context, e *Entry) error {
	return r.table.Put(*e)
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	return r.table.Delete(id)
}

func (r *MemoryRepository) DeleteAll(ctx context.Context) error {
	r.table.DeleteAll()
	return nil
}
