package auth

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"StudySync/internal/apperr"
	"StudySync/internal/memstore"
	"StudySync/internal/realtime"
)

// Repository stores users. Lookups that find nothing return (nil, nil).
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role string) ([]User, error)
	ListPending(ctx context.Context) ([]User, error)
	CountPending(ctx context.Context) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// pendingFilter selects students with no approval and no denial. Admins are implicitly approved.
var pendingFilter = bson.M{"approved_at": nil, "denied_at": nil, "role": bson.M{"$ne": RoleAdmin}}

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(Collection)}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *User) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M) ([]User, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	return r.find(ctx, filter)
}

func (r *UserRepository) ListPending(ctx context.Context) ([]User, error) {
	return r.find(ctx, pendingFilter)
}

func (r *UserRepository) CountPending(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, pendingFilter)
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	table *memstore.Table[User]
}

func NewMemoryUserRepository(publisher realtime.Publisher) *MemoryUserRepository {
	return &MemoryUserRepository{table: memstore.NewTable(Collection, func(u User) string { return u.ID }, publisher)}
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	u, ok := r.table.Get(id)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(email)
	found := r.table.Select(func(u User) bool { return u.Email == email })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, user *User) error {
	if existing, _ := r.FindByEmail(ctx, user.Email); existing != nil {
		return apperr.ErrConflict
	}
	return r.table.Insert(*user)
}

func (r *MemoryUserRepository) UpdateUser(ctx context.Context, user *User) error {
	return r.table.Put(*user)
}

func (r *MemoryUserRepository) DeleteUser(ctx context.Context, id string) error {
	return r.table.Delete(id)
}

func newestFirst(users []User) []User {
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users
}

func (r *MemoryUserRepository) ListByRole(ctx context.Context, role string) ([]User, error) {
	return newestFirst(r.table.Select(func(u User) bool { return role == "" || u.Role == role })), nil
}

func isPending(u User) bool {
	return u.Role != RoleAdmin && u.ApprovedAt == nil && u.DeniedAt == nil
}

func (r *MemoryUserRepository) ListPending(ctx context.Context) ([]User, error) {
	return newestFirst(r.table.Select(isPending)), nil
}

func (r *MemoryUserRepository) CountPending(ctx context.Context) (int64, error) {
	return int64(len(r.table.Select(isPending))), nil
}

func (r *MemoryUserRepository) ListIDs(ctx context.Context) ([]string, error) {
	users := r.table.Select(nil)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
