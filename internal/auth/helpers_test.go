package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/farm-fresh-api/internal/logging"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

// cheap parameters keep the argon2 cost out of test time
var testArgon2Params = Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}

type stubVerifier struct {
	identity *ExternalIdentity
	err      error
}

func (s *stubVerifier) Verify(ctx context.Context, raw string) (*ExternalIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.identity
	return &out, nil
}

type failingStore struct {
	err error
}

func (s *failingStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, s.err
}

func (s *failingStore) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return nil, s.err
}

func (s *failingStore) Upsert(ctx context.Context, u *user.User) (*user.User, error) {
	return nil, s.err
}

var errStoreDown = errors.New("store is down")

func newTestTokens(t *testing.T) *JWTService {
	t.Helper()
	tokens, err := NewJWTService([]byte("test-secret"))
	require.NoError(t, err)
	return tokens
}

func newTestService(t *testing.T, store user.Store, identity IdentityVerifier) *Service {
	t.Helper()
	return NewService(store, NewArgon2Hasher(testArgon2Params), newTestTokens(t), identity, logging.NewNopLogger(), 24*time.Hour)
}

func googleIdentity(email string) *ExternalIdentity {
	return &ExternalIdentity{
		Subject:       "google-sub-123",
		Email:         email,
		EmailVerified: true,
		Name:          "Green Grocer",
	}
}
