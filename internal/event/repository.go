package event

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

// Repository stores events and class groupings.
type Repository interface {
	ListEvents(ctx context.Context) ([]Event, error)
	InsertEvent(ctx context.Context, e *Event) error
	UpdateEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListClasses(ctx context.Context) ([]Class, error)
	InsertClass(ctx context.Context, c *Class) error
}

type MongoRepository struct {
	events  *mongo.Collection
	classes *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{events: db.Collection(EventCollection), classes: db.Collection(ClassCollection)}
}

func (r *MongoRepository) ListEvents(ctx context.Context) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := r.events.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *MongoRepository) InsertEvent(ctx context.Context, e *Event) error {
	_, err := r.events.InsertOne(ctx, e)
	return err
}

func (r *MongoRepository) UpdateEvent(ctx context.Context, e *Event) error {
	res, err := r.events.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.events.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListClasses(ctx context.Context) ([]Class, error) {
	cursor, err := r.classes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	classes := []Class{}
	if err := cursor.All(ctx, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *MongoRepository) InsertClass(ctx context.Context, c *Class) error {
	_, err := r.classes.InsertOne(ctx, c)
	return err
}

// MemoryRepository keeps events and classes in process memory.
type MemoryRepository struct {
	events  *memstore.Table[Event]
	classes *memstore.Table[Class]
}

func NewMemoryRepository(publisher realtime.Publisher) *MemoryRepository {
	return &MemoryRepository{
		events:  memstore.NewTable(EventCollection, func(e Event) string { return e.ID }, publisher),
		classes: memstore.NewTable(ClassCollection, func(c Class) string { return c.ID }, publisher),
	}
}

func (r *MemoryRepository) ListEvents(ctx context.Context) ([]Event, error) {
	events := r.events.Select(nil)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Time < events[j].Time
	})
	return events, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, e *Event) error {
	return r.events.Insert(*e)
}

func (r *MemoryRepository) UpdateEvent(ctx context.Context, e *Event) error {
	return r.events.Put(*e)
}

func (r *MemoryRepository) DeleteEvent(ctx context.Context, id string) error {
	return r.events.Delete(id)
}

func (r *MemoryRepository) ListClasses(ctx context.Context) ([]Class, error) {
	classes := r.classes.Select(nil)
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].CreatedAt.After(classes[j].CreatedAt) })
	return classes, nil
}

func (r *MemoryRepository) InsertClass(ctx context.Context, c *Class) error {
	return r.classes.Insert(*c)
}
