package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/farm-fresh-api/internal/httputil"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	h := NewHandler(newTestService(t, user.NewMemoryStore(), nil), false)

	rec := doJSON(t, http.HandlerFunc(h.Register), http.MethodPost, "/register", CredentialsRequest{Email: "farmer@example.com", Password: "hunter2"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode[RegisterResponse](t, rec)
	assert.Equal(t, "User registered successfully!", reg.Message)
	assert.NotEqual(t, uuid.Nil, reg.UserID)

	rec = doJSON(t, http.HandlerFunc(h.Register), http.MethodPost, "/register", CredentialsRequest{Email: "farmer@example.com", Password: "hunter2"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "User already exists with password authentication", errBody.Message)
	assert.Equal(t, httputil.CodeAlreadyRegistered, errBody.Code)

	rec = doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/login", CredentialsRequest{Email: "farmer@example.com", Password: "hunter2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	assert.Equal(t, "Login successful!", login.Message)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, reg.UserID, login.User.ID)
	assert.Equal(t, "farmer", login.User.Name)
	assert.NotContains(t, rec.Body.String(), "argon2")
}

func TestHandler_LoginFailures(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), &stubVerifier{identity: googleIdentity("grower@example.com")})
	h := NewHandler(svc, false)

	_, err := svc.SignInWithGoogle(t.Context(), GoogleSignIn{Credential: "id-token"})
	require.NoError(t, err)

	rec := doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/login", CredentialsRequest{Email: "nobody@example.com", Password: "x"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode[httputil.ErrorResponse](t, rec).Message)

	rec = doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/login", CredentialsRequest{Email: "grower@example.com", Password: "x"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	needs := decode[NeedsPasswordResponse](t, rec)
	assert.True(t, needs.NeedsPassword)
	assert.Equal(t, httputil.CodeNeedsPassword, needs.Code)
	assert.NotEqual(t, uuid.Nil, needs.UserID)

	rec = doJSON(t, http.HandlerFunc(h.Login), http.MethodPost, "/login", CredentialsRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password are required", decode[httputil.ErrorResponse](t, rec).Message)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_RegisterAttachesPasswordToGoogleAccount(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), &stubVerifier{identity: googleIdentity("grower@example.com")})
	h := NewHandler(svc, false)

	rec := doJSON(t, http.HandlerFunc(h.GoogleAuth), http.MethodPost, "/google-auth", GoogleAuthRequest{Credential: "id-token"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	google := decode[GoogleAuthResponse](t, rec)
	assert.Equal(t, "Google authentication successful!", google.Message)
	assert.False(t, google.HasPassword)
	assert.Equal(t, google.UserID, google.User.ID)
	assert.NotEmpty(t, google.Token)

	rec = doJSON(t, http.HandlerFunc(h.Register), http.MethodPost, "/register", CredentialsRequest{Email: "grower@example.com", Password: "hunter2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reg := decode[RegisterResponse](t, rec)
	assert.Equal(t, "Password added to existing Google account!", reg.Message)
	assert.Equal(t, google.UserID, reg.UserID)
}

func TestHandler_GoogleAuthErrors(t *testing.T) {
	rec := doJSON(t, http.HandlerFunc(NewHandler(newTestService(t, user.NewMemoryStore(), nil), false).GoogleAuth),
		http.MethodPost, "/google-auth", GoogleAuthRequest{Credential: "x"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h := NewHandler(newTestService(t, user.NewMemoryStore(), &stubVerifier{identity: googleIdentity("grower@example.com")}), false)

	rec = doJSON(t, http.HandlerFunc(h.GoogleAuth), http.MethodPost, "/google-auth", GoogleAuthRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, http.HandlerFunc(h.GoogleAuth), http.MethodPost, "/google-auth", GoogleAuthRequest{Credential: "x", Email: "victim@example.com"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidIdentity, decode[httputil.ErrorResponse](t, rec).Code)
}

func TestHandler_SetPassword(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), &stubVerifier{identity: googleIdentity("grower@example.com")})
	h := NewHandler(svc, false)
	mw := NewMiddleware(svc.tokens)
	setPassword := mw.OptionalAuth(http.HandlerFunc(h.SetPassword))

	session, err := svc.SignInWithGoogle(t.Context(), GoogleSignIn{Credential: "id-token"})
	require.NoError(t, err)
	userID := session.User.ID.String()

	rec := doJSON(t, setPassword, http.MethodPost, "/set-password", SetPasswordRequest{Email: "grower@example.com", Password: "pw"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, setPassword, http.MethodPost, "/set-password", SetPasswordRequest{Email: "nobody@example.com", Password: "pw", UserID: userID}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, setPassword, http.MethodPost, "/set-password", SetPasswordRequest{Email: "grower@example.com", Password: "pw", UserID: uuid.NewString()}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", decode[httputil.ErrorResponse](t, rec).Message)

	otherToken, err := svc.tokens.CreateToken(uuid.New(), "other@example.com", time.Hour)
	require.NoError(t, err)
	rec = doJSON(t, setPassword, http.MethodPost, "/set-password", SetPasswordRequest{Email: "grower@example.com", Password: "pw", UserID: userID}, bearer(otherToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, setPassword, http.MethodPost, "/set-password", SetPasswordRequest{Email: "grower@example.com", Password: "pw", UserID: userID}, bearer(session.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SetPasswordResponse](t, rec)
	assert.Equal(t, "Password set successfully! You can now login with either Google or password.", resp.Message)
	assert.ElementsMatch(t, []user.AuthMethod{user.AuthMethodGoogle, user.AuthMethodPassword}, resp.AuthMethods)
}

func TestHandler_Me(t *testing.T) {
	svc := newTestService(t, user.NewMemoryStore(), nil)
	h := NewHandler(svc, false)
	me := NewMiddleware(svc.tokens).RequireAuth(http.HandlerFunc(h.Me))

	_, err := svc.Register(t.Context(), "farmer@example.com", "hunter2")
	require.NoError(t, err)
	session, err := svc.Login(t.Context(), "farmer@example.com", "hunter2")
	require.NoError(t, err)

	rec := doJSON(t, me, http.MethodGet, "/me", nil, bearer(session.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "farmer@example.com", decode[MeResponse](t, rec).User.Email)

	ghost, err := svc.tokens.CreateToken(uuid.New(), "ghost@example.com", time.Hour)
	require.NoError(t, err)
	rec = doJSON(t, me, http.MethodGet, "/me", nil, bearer(ghost))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_InternalErrorDetail(t *testing.T) {
	svc := newTestService(t, &failingStore{err: errStoreDown}, nil)
	body := CredentialsRequest{Email: "farmer@example.com", Password: "hunter2"}

	rec := doJSON(t, http.HandlerFunc(NewHandler(svc, false).Login), http.MethodPost, "/login", body, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[httputil.ErrorResponse](t, rec).Message, "store is down")

	rec = doJSON(t, http.HandlerFunc(NewHandler(svc, true).Login), http.MethodPost, "/login", body, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error", decode[httputil.ErrorResponse](t, rec).Message)
}
