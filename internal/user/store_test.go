package user

import (
	"context"
	"sync"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) *RedisStore {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr(), Protocol: 2, DisableIdentity: true})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "")
}

func storeBackends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { return newMiniredisStore(t) },
	}
}

func TestStore_FindMissing(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.FindByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_UpsertInsertsThenUpdates(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			u := New("Grower@Example.com")
			u.AddMethod(AuthMethodGoogle)
			u.ExternalID = "sub-1"

			inserted, err := s.Upsert(ctx, u)
			require.NoError(t, err)
			assert.Equal(t, u.ID, inserted.ID)
			assert.Equal(t, "grower@example.com", inserted.Email)

			// a second record for the same email must update, keeping id and createdAt
			replacement := New("grower@example.com")
			replacement.PasswordHash = "hash"
			replacement.AuthMethods = []AuthMethod{AuthMethodGoogle, AuthMethodPassword}

			updated, err := s.Upsert(ctx, replacement)
			require.NoError(t, err)
			assert.Equal(t, inserted.ID, updated.ID)
			assert.True(t, inserted.CreatedAt.Equal(updated.CreatedAt))
			assert.Equal(t, "hash", updated.PasswordHash)

			byEmail, err := s.FindByEmail(ctx, "GROWER@example.com")
			require.NoError(t, err)
			assert.Equal(t, inserted.ID, byEmail.ID)
			assert.Equal(t, []AuthMethod{AuthMethodGoogle, AuthMethodPassword}, byEmail.AuthMethods)

			byID, err := s.FindByID(ctx, inserted.ID)
			require.NoError(t, err)
			assert.Equal(t, "grower@example.com", byID.Email)
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			u := New("farmer@example.com")
			u.AddMethod(AuthMethodPassword)
			_, err := s.Upsert(ctx, u)
			require.NoError(t, err)

			found, err := s.FindByEmail(ctx, "farmer@example.com")
			require.NoError(t, err)
			found.AuthMethods[0] = AuthMethodGoogle
			found.PasswordHash = "mutated"

			again, err := s.FindByEmail(ctx, "farmer@example.com")
			require.NoError(t, err)
			assert.Equal(t, []AuthMethod{AuthMethodPassword}, again.AuthMethods)
			assert.Empty(t, again.PasswordHash)
		})
	}
}

func TestStore_ConcurrentUpsertsKeepOneRecord(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			const n = 8
			ids := make([]uuid.UUID, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					stored, err := s.Upsert(ctx, New("race@example.com"))
					if err == nil {
						ids[i] = stored.ID
					}
				}(i)
			}
			wg.Wait()

			final, err := s.FindByEmail(ctx, "race@example.com")
			require.NoError(t, err)

			for _, id := range ids {
				if id != uuid.Nil {
					assert.Equal(t, final.ID, id)
				}
			}

			byID, err := s.FindByID(ctx, final.ID)
			require.NoError(t, err)
			assert.Equal(t, final.ID, byID.ID)
		})
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Upsert(context.Background(), New("farmer@example.com"))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestRedisStore_KeyLayout(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: m.Addr(), Protocol: 2, DisableIdentity: true}), "farm:")
	stored, err := s.Upsert(context.Background(), New("Farmer@example.com"))
	require.NoError(t, err)

	assert.True(t, m.Exists("farm:email:farmer@example.com"))
	email, err := m.Get("farm:id:" + stored.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", email)
	assert.NoError(t, s.Ping(context.Background()))
}
