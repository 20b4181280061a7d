package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxUpsertRetries = 5

// RedisStore keeps each user as a JSON document keyed by email, with a
// secondary id -> email key for lookups by ID.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "user:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + "email:" + NormalizeEmail(email)
}

func (s *RedisStore) idKey(id uuid.UUID) string {
	return s.prefix + "id:" + id.String()
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, s.client, s.emailKey(email))
}

func (s *RedisStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	email, err := s.client.Get(ctx, s.idKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user id index: %w", err)
	}
	return s.get(ctx, s.client, s.emailKey(email))
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, key string) (*User, error) {
	b, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var doc redisUser
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return doc.toModel(), nil
}

// Upsert writes u under WATCH on its email key; a concurrent writer makes
// the transaction fail and the read-modify-write is retried.
func (s *RedisStore) Upsert(ctx context.Context, u *User) (*User, error) {
	key := s.emailKey(u.Email)
	var stored *User

	txf := func(tx *redis.Tx) error {
		stored = u.Clone()
		stored.Email = NormalizeEmail(u.Email)
		stored.UpdatedAt = time.Now().UTC()

		existing, err := s.get(ctx, tx, key)
		switch {
		case err == nil:
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrNotFound):
			if stored.ID == uuid.Nil {
				stored.ID = uuid.New()
			}
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = stored.UpdatedAt
			}
		default:
			return err
		}

		b, err := json.Marshal(newRedisUser(stored))
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.Set(ctx, s.idKey(stored.ID), stored.Email, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpsertRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return stored.Clone(), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil, fmt.Errorf("failed to upsert user: too many concurrent writers for %s", NormalizeEmail(u.Email))
}

// Ping verifies the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisUser struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	ExternalID   string     `json:"externalId,omitempty"`
	DisplayName  string     `json:"displayName"`
	AuthMethods  []string   `json:"authMethods"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func newRedisUser(u *User) *redisUser {
	return &redisUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		ExternalID:   u.ExternalID,
		DisplayName:  u.DisplayName,
		AuthMethods:  methodsToStrings(u.AuthMethods),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func (d *redisUser) toModel() *User {
	return &User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		ExternalID:   d.ExternalID,
		DisplayName:  d.DisplayName,
		AuthMethods:  methodsFromStrings(d.AuthMethods),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLoginAt:  d.LastLoginAt,
	}
}
