package notification

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"StudySync/internal/apperr"
	"StudySync/internal/memstore"
	"StudySync/internal/realtime"
)

// Repository stores notifications. FindByID returns (nil, nil) when nothing matches.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	InsertMany(ctx context.Context, ns []Notification) error
	FindByID(ctx context.Context, id string) (*Notification, error)
	// ListByUser returns archived or non-archived notifications of a user, newest first.
	ListByUser(ctx context.Context, userID string, archived bool) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead marks every non-archived notification read, archiving them when archiveAt is set.
	MarkAllRead(ctx context.Context, userID string, archiveAt *time.Time) (int64, error)
	Archive(ctx context.Context, id string, at time.Time) error
	MarkEmailed(ctx context.Context, id string, at time.Time) error
}

// SettingsRepository stores notification settings. Get returns (nil, nil) when none exist.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*Settings, error)
	Upsert(ctx context.Context, s *Settings) error
}

// NotificationRepository handles DB operations for notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notifications.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection(Collection)}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *Notification) error {
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepository) InsertMany(ctx context.Context, ns []Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ns))
	for i := range ns {
		docs[i] = ns[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, archived bool) ([]Notification, error) {
	filter := bson.M{"user_id": userID, "archived_at": nil}
	if archived {
		filter["archived_at"] = bson.M{"$ne": nil}
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	ns := []Notification{}
	if err := cursor.All(ctx, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false, "archived_at": nil})
}

func (r *NotificationRepository) set(ctx context.Context, id string, fields bson.M) error {
	res, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.set(ctx, id, bson.M{"is_read": true})
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, archiveAt *time.Time) (int64, error) {
	fields := bson.M{"is_read": true}
	if archiveAt != nil {
		fields["archived_at"] = *archiveAt
	}
	res, err := r.collection.UpdateMany(ctx, bson.M{"user_id": userID, "archived_at": nil}, bson.M{"$set": fields})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) Archive(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"archived_at": at, "is_read": true})
}

func (r *NotificationRepository) MarkEmailed(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"emailed_at": at})
}

type MongoSettingsRepository struct {
	collection *mongo.Collection
}

func NewMongoSettingsRepository(db *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{collection: db.Collection(SettingsCollection)}
}

func (r *MongoSettingsRepository) Get(ctx context.Context, userID string) (*Settings, error) {
	var s Settings
	if err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoSettingsRepository) Upsert(ctx context.Context, s *Settings) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": s.UserID}, s, options.Replace().SetUpsert(true))
	return err
}

// MemoryRepository keeps notifications in process memory.
type MemoryRepository struct {
	table *memstore.Table[Notification]
}

func NewMemoryRepository(publisher realtime.Publisher) *MemoryRepository {
	return &MemoryRepository{table: memstore.NewTable(Collection, func(n Notification) string { return n.ID }, publisher)}
}

func (r *MemoryRepository) Insert(ctx context.Context, n *Notification) error {
	return r.table.Insert(*n)
}

func (r *MemoryRepository) InsertMany(ctx context.Context, ns []Notification) error {
	return r.table.InsertMany(ns)
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Notification, error) {
	n, ok := r.table.Get(id)
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, archived bool) ([]Notification, error) {
	ns := r.table.Select(func(n Notification) bool {
		return n.UserID == userID && (n.ArchivedAt != nil) == archived
	})
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
	return ns, nil
}

func (r *MemoryRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ns := r.table.Select(func(n Notification) bool {
		return n.UserID == userID && !n.IsRead && n.ArchivedAt == nil
	})
	return int64(len(ns)), nil
}

func (r *MemoryRepository) update(id string, mutate func(*Notification)) error {
	if r.table.Update(func(n Notification) bool { return n.ID == id }, mutate) == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MemoryRepository) MarkRead(ctx context.Context, id string) error {
	return r.update(id, func(n *Notification) { n.IsRead = true })
}

func (r *MemoryRepository) MarkAllRead(ctx context.Context, userID string, archiveAt *time.Time) (int64, error) {
	n := r.table.Update(
		func(n Notification) bool { return n.UserID == userID && n.ArchivedAt == nil },
		func(n *Notification) {
			n.IsRead = true
			if archiveAt != nil {
				at := *archiveAt
				n.ArchivedAt = &at
			}
		},
	)
	return int64(n), nil
}

func (r *MemoryRepository) Archive(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(n *Notification) {
		n.ArchivedAt = &at
		n.IsRead = true
	})
}

func (r *MemoryRepository) MarkEmailed(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(n *Notification) { n.EmailedAt = &at })
}

// MemorySettingsRepository keeps settings in process memory.
type MemorySettingsRepository struct {
	table *memstore.Table[Settings]
}

func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{table: memstore.NewTable(SettingsCollection, func(s Settings) string { return s.UserID }, nil)}
}

func (r *MemorySettingsRepository) Get(ctx context.Context, userID string) (*Settings, error) {
	s, ok := r.table.Get(userID)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemorySettingsRepository) Upsert(ctx context.Context, s *Settings) error {
	if err := r.table.Put(*s); err == nil {
		return nil
	}
	return r.table.Insert(*s)
}
