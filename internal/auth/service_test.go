package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/farm-fresh-api/internal/metrics"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	store := user.NewMemoryStore()
	svc := newTestService(t, store, nil)

	result, err := svc.Register(ctx, "Farmer@Example.com", "hunter2")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "farmer@example.com", result.User.Email)
	assert.Equal(t, []user.AuthMethod{user.AuthMethodPassword}, result.User.AuthMethods)
	assert.NotEqual(t, "hunter2", result.User.PasswordHash)

	_, err = svc.Register(ctx, "farmer@example.com", "other")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, store.Len())
}

func TestService_Register_Validation(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), nil)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "pw", ErrMissingCredentials},
		{"missing password", "a@example.com", "", ErrMissingCredentials},
		{"not an address", "not-an-email", "pw", ErrInvalidEmailFormat},
		{"display name form", "Bob <bob@example.com>", "pw", ErrInvalidEmailFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Register_ConcurrentSameEmail(t *testing.T) {
	store := user.NewMemoryStore()
	svc := newTestService(t, store, nil)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), "race@example.com", "pw")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyRegistered):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, 1, store.Len())
	assert.Zero(t, svc.locks.size())
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, user.NewMemoryStore(), nil)

	registered, err := svc.Register(ctx, "farmer@example.com", "hunter2")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "FARMER@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	require.NotNil(t, session.User.LastLoginAt)

	claims, err := svc.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID.String(), claims.UserID)
	assert.Equal(t, "farmer@example.com", claims.Email)
}

func TestService_RegisterThenLogin_TokenCarriesEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, user.NewMemoryStore(), nil)

	pairs := []struct{ email, password string }{
		{"a@x.com", "pw12345"},
		{"orchard.keeper@farm.example.org", "correct horse battery staple"},
		{"bee+hive@example.com", "ünïcødé-pässwörd"},
		{"x@y.co", " spaces inside "},
	}
	for _, p := range pairs {
		_, err := svc.Register(ctx, p.email, p.password)
		require.NoError(t, err, p.email)

		session, err := svc.Login(ctx, p.email, p.password)
		require.NoError(t, err, p.email)

		claims, err := svc.tokens.VerifyToken(session.Token)
		require.NoError(t, err)
		assert.Equal(t, p.email, claims.Email)
	}
}

func TestService_Login_UniformFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, user.NewMemoryStore(), nil)

	_, err := svc.Register(ctx, "farmer@example.com", "hunter2")
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "farmer@example.com", "wrong")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "hunter2")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestService_GoogleThenPassword(t *testing.T) {
	ctx := context.Background()
	store := user.NewMemoryStore()
	svc := newTestService(t, store, &stubVerifier{identity: googleIdentity("grower@example.com")})

	session, err := svc.SignInWithGoogle(ctx, GoogleSignIn{Credential: "id-token"})
	require.NoError(t, err)
	assert.Equal(t, []user.AuthMethod{user.AuthMethodGoogle}, session.User.AuthMethods)
	assert.Equal(t, "Green Grocer", session.User.DisplayName)
	assert.Equal(t, "google-sub-123", session.User.ExternalID)
	assert.False(t, session.User.HasPassword())

	_, err = svc.Login(ctx, "grower@example.com", "anything")
	var needsPassword *NeedsPasswordError
	require.ErrorAs(t, err, &needsPassword)
	assert.Equal(t, session.User.ID, needsPassword.UserID)

	result, err := svc.Register(ctx, "grower@example.com", "hunter2")
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, session.User.ID, result.User.ID)
	assert.ElementsMatch(t, []user.AuthMethod{user.AuthMethodGoogle, user.AuthMethodPassword}, result.User.AuthMethods)

	_, err = svc.Login(ctx, "grower@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestService_PasswordThenGoogle(t *testing.T) {
	ctx := context.Background()
	store := user.NewMemoryStore()
	svc := newTestService(t, store, &stubVerifier{identity: googleIdentity("farmer@example.com")})

	registered, err := svc.Register(ctx, "farmer@example.com", "hunter2")
	require.NoError(t, err)

	session, err := svc.SignInWithGoogle(ctx, GoogleSignIn{Credential: "id-token", Email: "Farmer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.Equal(t, registered.User.PasswordHash, session.User.PasswordHash)
	assert.Equal(t, []user.AuthMethod{user.AuthMethodPassword, user.AuthMethodGoogle}, session.User.AuthMethods)

	// repeat sign-in doesn't duplicate the method
	again, err := svc.SignInWithGoogle(ctx, GoogleSignIn{Credential: "id-token"})
	require.NoError(t, err)
	assert.Len(t, again.User.AuthMethods, 2)
	assert.Equal(t, 1, store.Len())
}

func TestService_SignInWithGoogle_Rejections(t *testing.T) {
	ctx := context.Background()

	unverified := googleIdentity("grower@example.com")
	unverified.EmailVerified = false

	tests := []struct {
		name     string
		verifier IdentityVerifier
		in       GoogleSignIn
		want     error
	}{
		{"not configured", nil, GoogleSignIn{Credential: "x"}, ErrIdentityUnavailable},
		{"missing credential", &stubVerifier{identity: googleIdentity("grower@example.com")}, GoogleSignIn{}, ErrCredentialRequired},
		{"verifier error", &stubVerifier{err: errors.New("bad signature")}, GoogleSignIn{Credential: "x"}, ErrInvalidIdentity},
		{"unverified email", &stubVerifier{identity: unverified}, GoogleSignIn{Credential: "x"}, ErrInvalidIdentity},
		{"email mismatch", &stubVerifier{identity: googleIdentity("grower@example.com")}, GoogleSignIn{Credential: "x", Email: "victim@example.com"}, ErrInvalidIdentity},
		{"subject mismatch", &stubVerifier{identity: googleIdentity("grower@example.com")}, GoogleSignIn{Credential: "x", GoogleID: "other"}, ErrInvalidIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := user.NewMemoryStore()
			svc := newTestService(t, store, tt.verifier)

			_, err := svc.SignInWithGoogle(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, store.Len())
		})
	}
}

func TestService_SetPassword(t *testing.T) {
	ctx := context.Background()
	store := user.NewMemoryStore()
	svc := newTestService(t, store, &stubVerifier{identity: googleIdentity("grower@example.com")})

	session, err := svc.SignInWithGoogle(ctx, GoogleSignIn{Credential: "id-token"})
	require.NoError(t, err)

	methods, err := svc.SetPassword(ctx, "grower@example.com", "hunter2", session.User.ID.String())
	require.NoError(t, err)
	assert.ElementsMatch(t, []user.AuthMethod{user.AuthMethodGoogle, user.AuthMethodPassword}, methods)

	stored, err := store.FindByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	_, err = svc.Login(ctx, "grower@example.com", "hunter2")
	assert.NoError(t, err)
}

func TestService_SetPassword_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, user.NewMemoryStore(), nil)

	registered, err := svc.Register(ctx, "farmer@example.com", "hunter2")
	require.NoError(t, err)
	other, err := svc.Register(ctx, "other@example.com", "hunter2")
	require.NoError(t, err)

	_, err = svc.SetPassword(ctx, "farmer@example.com", "new", "")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.SetPassword(ctx, "nobody@example.com", "new", registered.User.ID.String())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.SetPassword(ctx, "farmer@example.com", "new", other.User.ID.String())
	assert.ErrorIs(t, err, ErrUserMismatch)

	_, err = svc.SetPassword(ctx, "farmer@example.com", "new", "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserMismatch)

	// the old password still works
	_, err = svc.Login(ctx, "farmer@example.com", "hunter2")
	assert.NoError(t, err)
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, user.NewMemoryStore(), nil)

	registered, err := svc.Register(ctx, "farmer@example.com", "hunter2")
	require.NoError(t, err)

	u, err := svc.CurrentUser(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", u.Email)

	_, err = svc.CurrentUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_StoreFailureIsInternal(t *testing.T) {
	svc := newTestService(t, &failingStore{err: errStoreDown}, nil)

	before := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", metrics.OutcomeError))

	_, err := svc.Login(context.Background(), "farmer@example.com", "hunter2")
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, isRejection(err))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", metrics.OutcomeError)))
}

func TestService_RecordsRejections(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), nil)

	before := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", metrics.OutcomeRejected))
	_, err := svc.Login(context.Background(), "nobody@example.com", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", metrics.OutcomeRejected)))
}
