package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoUser is the document shape stored in the users collection
type mongoUser struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash,omitempty"`
	ExternalID   string     `bson:"externalId,omitempty"`
	DisplayName  string     `bson:"displayName"`
	AuthMethods  []string   `bson:"authMethods"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
	LastLoginAt  *time.Time `bson:"lastLoginAt,omitempty"`
}

// MongoStore implements Store using a MongoDB collection
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// EnsureIndexes creates the unique email index
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *MongoStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc mongoUser
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toModel()
}

// Upsert updates the document owning u.Email or inserts a new one. _id and
// createdAt are only written on insert.
func (s *MongoStore) Upsert(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	filter := bson.M{"email": NormalizeEmail(u.Email)}
	set := bson.M{
		"displayName": u.DisplayName,
		"authMethods": methodsToStrings(u.AuthMethods),
		"updatedAt":   now,
	}
	unset := bson.M{}
	setOptional(set, unset, "passwordHash", u.PasswordHash)
	setOptional(set, unset, "externalId", u.ExternalID)
	if u.LastLoginAt != nil {
		set["lastLoginAt"] = u.LastLoginAt.UTC()
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": id.String(), "createdAt": createdAt},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoUser
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on a new email; the loser retries as an update.
		err = s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return doc.toModel()
}

// Ping verifies the server is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.col.Database().Client().Ping(ctx, nil)
}

func setOptional(set, unset bson.M, field, value string) {
	if value == "" {
		unset[field] = ""
		return
	}
	set[field] = value
}

func (d *mongoUser) toModel() (*User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &User{
		ID:           id,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		ExternalID:   d.ExternalID,
		DisplayName:  d.DisplayName,
		AuthMethods:  methodsFromStrings(d.AuthMethods),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLoginAt:  d.LastLoginAt,
	}, nil
}
