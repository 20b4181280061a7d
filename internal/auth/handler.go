package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/farm-fresh-api/internal/httputil"
	"github.com/redmonkez12/farm-fresh-api/internal/logging"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

const needsPasswordMessage = "This account uses Google Sign-In. Please login with Google or set a password first."

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	isProduction bool
}

func NewHandler(service *Service, isProduction bool) *Handler {
	return &Handler{
		service:      service,
		isProduction: isProduction,
	}
}

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleAuthRequest represents the Google sign-in request body
type GoogleAuthRequest struct {
	Credential string `json:"credential"`
	Email      string `json:"email,omitempty"`
	GoogleID   string `json:"googleId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SetPasswordRequest represents the set-password request body
type SetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserID   string `json:"userId"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	AuthMethods []user.AuthMethod `json:"authMethods"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
}

// LoginResponse represents a successful password login
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
}

// NeedsPasswordResponse is returned when a Google-only account tries a password login
type NeedsPasswordResponse struct {
	Message       string    `json:"message"`
	Code          string    `json:"code"`
	NeedsPassword bool      `json:"needsPassword"`
	UserID        uuid.UUID `json:"userId"`
}

// GoogleAuthResponse represents a successful Google sign-in
type GoogleAuthResponse struct {
	Message     string       `json:"message"`
	Token       string       `json:"token"`
	UserID      uuid.UUID    `json:"userId"`
	User        UserResponse `json:"user"`
	HasPassword bool         `json:"hasPassword"`
}

// SetPasswordResponse represents the set-password response
type SetPasswordResponse struct {
	Message     string            `json:"message"`
	AuthMethods []user.AuthMethod `json:"authMethods"`
}

// MeResponse wraps the current user
type MeResponse struct {
	User UserResponse `json:"user"`
}

func newUserResponse(u *user.User) UserResponse {
	methods := u.AuthMethods
	if methods == nil {
		methods = []user.AuthMethod{}
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.DisplayName,
		AuthMethods: methods,
	}
}

// Register handles user registration
// @Summary      Register with email and password
// @Description  Create a password account, or add a password to an existing Google account. No session is issued.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Registration credentials"
// @Success      201 {object} RegisterResponse "User created"
// @Success      200 {object} RegisterResponse "Password added to an existing Google account"
// @Failure      400 {object} httputil.ErrorResponse "Validation error or already registered"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "Invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			logger.Warn("registration failed: missing credentials")
			respondError(w, "Email and password are required", httputil.CodeMissingCredentials, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			logger.Warn("registration failed: invalid email")
			respondError(w, "Invalid email format", httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: already registered")
			respondError(w, "User already exists with password authentication", httputil.CodeAlreadyRegistered, http.StatusBadRequest)
		default:
			h.internalError(w, logger, "registration failed", err)
		}
		return
	}

	if !result.Created {
		respondJSON(w, RegisterResponse{
			Message: "Password added to existing Google account!",
			UserID:  result.User.ID,
		}, http.StatusOK)
		return
	}

	respondJSON(w, RegisterResponse{
		Message: "User registered successfully!",
		UserID:  result.User.ID,
	}, http.StatusCreated)
}

// Login handles password login
// @Summary      Login with email and password
// @Description  Verify a password and issue a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} NeedsPasswordResponse "Missing fields, or the account has no password"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "Invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var needsPassword *NeedsPasswordError
		switch {
		case errors.As(err, &needsPassword):
			logger.Warn("login failed: account has no password", "user_id", needsPassword.UserID)
			respondJSON(w, NeedsPasswordResponse{
				Message:       needsPasswordMessage,
				Code:          httputil.CodeNeedsPassword,
				NeedsPassword: true,
				UserID:        needsPassword.UserID,
			}, http.StatusBadRequest)
		case errors.Is(err, ErrMissingCredentials):
			logger.Warn("login failed: missing credentials")
			respondError(w, "Email and password are required", httputil.CodeMissingCredentials, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			respondError(w, "Invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		default:
			h.internalError(w, logger, "login failed", err)
		}
		return
	}

	logger.Info("user logged in", "user_id", session.User.ID)

	respondJSON(w, LoginResponse{
		Message: "Login successful!",
		Token:   session.Token,
		User:    newUserResponse(session.User),
	}, http.StatusOK)
}

// GoogleAuth handles Google sign-in
// @Summary      Sign in with Google
// @Description  Verify a Google ID token, create or merge the account for its email and issue a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body GoogleAuthRequest true "Google credential"
// @Success      200 {object} GoogleAuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing credential"
// @Failure      401 {object} httputil.ErrorResponse "Credential rejected"
// @Failure      503 {object} httputil.ErrorResponse "Google sign-in not configured"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /google-auth [post]
func (h *Handler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid google auth request body", "error", err.Error())
		respondError(w, "Invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	session, err := h.service.SignInWithGoogle(r.Context(), GoogleSignIn{
		Credential: req.Credential,
		Email:      req.Email,
		GoogleID:   req.GoogleID,
		Name:       req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrIdentityUnavailable):
			logger.Warn("google auth rejected: provider not configured")
			respondError(w, "Google sign-in is not available", httputil.CodeProviderUnavailable, http.StatusServiceUnavailable)
		case errors.Is(err, ErrCredentialRequired):
			logger.Warn("google auth failed: missing credential")
			respondError(w, "Google credential is required", httputil.CodeCredentialRequired, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidIdentity):
			logger.Warn("google auth failed: credential rejected", "error", err.Error())
			respondError(w, "Invalid Google credential", httputil.CodeInvalidIdentity, http.StatusUnauthorized)
		default:
			h.internalError(w, logger, "google auth failed", err)
		}
		return
	}

	logger.Info("google sign-in succeeded", "user_id", session.User.ID)

	respondJSON(w, GoogleAuthResponse{
		Message:     "Google authentication successful!",
		Token:       session.Token,
		UserID:      session.User.ID,
		User:        newUserResponse(session.User),
		HasPassword: session.User.HasPassword(),
	}, http.StatusOK)
}

// SetPassword handles attaching a password to an account
// @Summary      Set a password
// @Description  Attach or replace the password of the account identified by email and userId
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SetPasswordRequest true "Password and account identity"
// @Success      200 {object} SetPasswordResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing fields"
// @Failure      403 {object} httputil.ErrorResponse "User id does not match"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /set-password [post]
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid set-password request body", "error", err.Error())
		respondError(w, "Invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	// a session, when present, must belong to the account being changed
	if sessionUserID, ok := GetUserIDFromContext(r.Context()); ok && sessionUserID.String() != req.UserID {
		logger.Warn("set-password rejected: session belongs to another user", "session_user_id", sessionUserID)
		respondError(w, "Unauthorized", httputil.CodeForbidden, http.StatusForbidden)
		return
	}

	methods, err := h.service.SetPassword(r.Context(), req.Email, req.Password, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields):
			logger.Warn("set-password failed: missing fields")
			respondError(w, "Email, password and userId are required", httputil.CodeMissingCredentials, http.StatusBadRequest)
		case errors.Is(err, ErrUserNotFound):
			logger.Warn("set-password failed: user not found")
			respondError(w, "User not found", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrUserMismatch):
			logger.Warn("set-password failed: user id mismatch")
			respondError(w, "Unauthorized", httputil.CodeForbidden, http.StatusForbidden)
		default:
			h.internalError(w, logger, "set-password failed", err)
		}
		return
	}

	respondJSON(w, SetPasswordResponse{
		Message:     "Password set successfully! You can now login with either Google or password.",
		AuthMethods: methods,
	}, http.StatusOK)
}

// Me returns the user the session token belongs to
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MeResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "Missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logger.Warn("session user no longer exists", "user_id", userID)
			respondError(w, "User not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, logger, "failed to load current user", err)
		return
	}

	respondJSON(w, MeResponse{User: newUserResponse(u)}, http.StatusOK)
}

func (h *Handler) internalError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	logger.Error(msg+": internal error", "error", err.Error())
	message := "Server error"
	if !h.isProduction {
		message = "Server error: " + err.Error()
	}
	respondError(w, message, httputil.CodeInternalError, http.StatusInternalServerError)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

