package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/farm-fresh-api/internal/logging"
	"github.com/redmonkez12/farm-fresh-api/internal/metrics"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

// flow labels used for metrics and logs
const (
	flowRegister    = "register"
	flowLogin       = "login"
	flowGoogle      = "google"
	flowSetPassword = "set_password"
)

// RegisterResult is the outcome of Register. Created is false when a
// password was attached to an existing Google-only account.
type RegisterResult struct {
	User    *user.User
	Created bool
}

// Session is an issued session token and the user it was issued to
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// GoogleSignIn is the input of SignInWithGoogle. Email and GoogleID are
// optional hints from the client; when set they must match the credential.
type GoogleSignIn struct {
	Credential string
	Email      string
	GoogleID   string
	Name       string
}

// Service reconciles password and Google identities onto one user per email
type Service struct {
	store           user.Store
	hasher          PasswordHasher
	tokens          TokenService
	identity        IdentityVerifier // nil disables Google sign-in
	logger          *logging.Logger
	sessionDuration time.Duration
	locks           *emailLocks
}

func NewService(
	store user.Store,
	hasher PasswordHasher,
	tokens TokenService,
	identity IdentityVerifier,
	logger *logging.Logger,
	sessionDuration time.Duration,
) *Service {
	return &Service{
		store:           store,
		hasher:          hasher,
		tokens:          tokens,
		identity:        identity,
		logger:          logger,
		sessionDuration: sessionDuration,
		locks:           newEmailLocks(),
	}
}

// GoogleEnabled reports whether SignInWithGoogle can verify credentials
func (s *Service) GoogleEnabled() bool {
	return s.identity != nil
}

// Register creates a password account, or attaches a password to an
// existing Google-only account. No session is issued.
func (s *Service) Register(ctx context.Context, email, password string) (_ *RegisterResult, err error) {
	defer s.record(flowRegister, &err)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(user.NormalizeEmail(email))
	defer unlock()

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existing != nil {
		if existing.HasMethod(user.AuthMethodPassword) {
			return nil, ErrAlreadyRegistered
		}

		if err := s.setPassword(existing, password); err != nil {
			return nil, err
		}

		updated, err := s.store.Upsert(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("failed to attach password: %w", err)
		}

		metrics.AuthMethodsLinked.WithLabelValues(string(user.AuthMethodPassword)).Inc()
		s.logger.Info("password attached to existing account", "user_id", updated.ID)

		return &RegisterResult{User: updated, Created: false}, nil
	}

	newUser := user.New(email)
	if err := s.setPassword(newUser, password); err != nil {
		return nil, err
	}

	created, err := s.store.Upsert(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersCreated.WithLabelValues(string(user.AuthMethodPassword)).Inc()
	s.logger.Info("user registered", "user_id", created.ID)

	return &RegisterResult{User: created, Created: true}, nil
}

// Login checks a password and issues a session token. Unknown emails and
// wrong passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	defer s.record(flowLogin, &err)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	unlock := s.locks.lock(user.NormalizeEmail(email))
	defer unlock()

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.HasPassword() {
		return nil, &NeedsPasswordError{UserID: existing.ID}
	}

	if !s.hasher.Verify(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, existing)
}

// SignInWithGoogle verifies a Google ID token, then creates or merges the
// user owning the verified email and issues a session token.
func (s *Service) SignInWithGoogle(ctx context.Context, in GoogleSignIn) (_ *Session, err error) {
	defer s.record(flowGoogle, &err)

	if s.identity == nil {
		return nil, ErrIdentityUnavailable
	}
	if strings.TrimSpace(in.Credential) == "" {
		return nil, ErrCredentialRequired
	}

	identity, err := s.identity.Verify(ctx, in.Credential)
	if err != nil {
		if errors.Is(err, ErrInvalidIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	if identity.Subject == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: credential has no subject or email", ErrInvalidIdentity)
	}
	if !identity.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified by the provider", ErrInvalidIdentity)
	}
	if in.Email != "" && user.NormalizeEmail(in.Email) != user.NormalizeEmail(identity.Email) {
		return nil, fmt.Errorf("%w: email does not match credential", ErrInvalidIdentity)
	}
	if in.GoogleID != "" && in.GoogleID != identity.Subject {
		return nil, fmt.Errorf("%w: google id does not match credential", ErrInvalidIdentity)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.TrimSpace(in.Name)
	}

	unlock := s.locks.lock(user.NormalizeEmail(identity.Email))
	defer unlock()

	existing, err := s.store.FindByEmail(ctx, identity.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existing == nil {
		existing = user.New(identity.Email)
		if name != "" {
			existing.DisplayName = name
		}
		existing.ExternalID = identity.Subject
		existing.AddMethod(user.AuthMethodGoogle)

		metrics.UsersCreated.WithLabelValues(string(user.AuthMethodGoogle)).Inc()
		s.logger.Info("user created from google sign-in", "user_id", existing.ID)
	} else {
		if !existing.HasMethod(user.AuthMethodGoogle) {
			existing.AddMethod(user.AuthMethodGoogle)
			metrics.AuthMethodsLinked.WithLabelValues(string(user.AuthMethodGoogle)).Inc()
			s.logger.Info("google identity linked to existing account", "user_id", existing.ID)
		}
		existing.ExternalID = identity.Subject
		if name != "" {
			existing.DisplayName = name
		}
	}

	return s.startSession(ctx, existing)
}

// SetPassword lets the owner of userID attach (or replace) a password.
// It returns the enabled auth methods afterwards.
func (s *Service) SetPassword(ctx context.Context, email, password, userID string) (_ []user.AuthMethod, err error) {
	defer s.record(flowSetPassword, &err)

	email = strings.TrimSpace(email)
	if email == "" || password == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrMissingFields
	}

	unlock := s.locks.lock(user.NormalizeEmail(email))
	defer unlock()

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	claimedID, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || claimedID != existing.ID {
		return nil, ErrUserMismatch
	}

	linked := !existing.HasMethod(user.AuthMethodPassword)
	if err := s.setPassword(existing, password); err != nil {
		return nil, err
	}

	updated, err := s.store.Upsert(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to set password: %w", err)
	}

	if linked {
		metrics.AuthMethodsLinked.WithLabelValues(string(user.AuthMethodPassword)).Inc()
	}
	s.logger.Info("password set", "user_id", updated.ID)

	return updated.AuthMethods, nil
}

// CurrentUser loads the user a verified session token belongs to
func (s *Service) CurrentUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// setPassword hashes password onto u and enables the password method.
// Every path that stores a password goes through here.
func (s *Service) setPassword(u *user.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	u.AddMethod(user.AuthMethodPassword)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// startSession stamps lastLoginAt, persists u and issues a token
func (s *Service) startSession(ctx context.Context, u *user.User) (*Session, error) {
	now := time.Now().UTC()
	u.LastLoginAt = &now

	stored, err := s.store.Upsert(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	token, err := s.tokens.CreateToken(stored.ID, stored.Email, s.sessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &Session{
		Token:     token,
		ExpiresAt: now.Add(s.sessionDuration),
		User:      stored,
	}, nil
}

func (s *Service) record(flow string, errp *error) {
	outcome := metrics.OutcomeSuccess
	if err := *errp; err != nil {
		outcome = metrics.OutcomeError
		if isRejection(err) {
			outcome = metrics.OutcomeRejected
		}
	}
	metrics.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

func validateEmail(email string) error {
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}
