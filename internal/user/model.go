package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthMethod is one of the ways a user can prove their identity.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodGoogle   AuthMethod = "google"
)

type User struct {
	ID           uuid.UUID    `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Never expose password hash in JSON
	ExternalID   string       `json:"-"`
	DisplayName  string       `json:"name"`
	AuthMethods  []AuthMethod `json:"authMethods"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
}

// New returns a record for email with a fresh ID and no auth methods.
func New(email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.New(),
		Email:       NormalizeEmail(email),
		DisplayName: LocalPart(email),
		AuthMethods: []AuthMethod{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasMethod reports whether m is enabled for the user.
func (u *User) HasMethod(m AuthMethod) bool {
	for _, existing := range u.AuthMethods {
		if existing == m {
			return true
		}
	}
	return false
}

// AddMethod enables m. Adding an already enabled method is a no-op.
func (u *User) AddMethod(m AuthMethod) {
	if !u.HasMethod(m) {
		u.AuthMethods = append(u.AuthMethods, m)
	}
}

// HasPassword reports whether a password hash is stored.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Clone returns a deep copy so callers can't mutate store-owned records.
func (u *User) Clone() *User {
	c := *u
	c.AuthMethods = append([]AuthMethod{}, u.AuthMethods...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalPart returns the part of the email before the @
func LocalPart(email string) string {
	email = strings.TrimSpace(email)
	if idx := strings.IndexByte(email, '@'); idx >= 0 {
		return email[:idx]
	}
	return email
}

func methodsToStrings(methods []AuthMethod) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, string(m))
	}
	return out
}

func methodsFromStrings(values []string) []AuthMethod {
	out := make([]AuthMethod, 0, len(values))
	for _, v := range values {
		out = append(out, AuthMethod(v))
	}
	return out
}
