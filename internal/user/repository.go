package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/farm-fresh-api/internal/database"
)

// Repository handles user persistence in Postgres
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail retrieves a user by email
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", NormalizeEmail(email)).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// FindByID retrieves a user by ID
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// Upsert inserts the user or updates the row that already owns the email.
// The conflict target is the unique email index so the row keeps its id.
func (r *Repository) Upsert(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	dbUser := mapModelToDBUser(u)
	dbUser.UpdatedAt = now
	if dbUser.ID == uuid.Nil {
		dbUser.ID = uuid.New()
	}
	if dbUser.CreatedAt.IsZero() {
		dbUser.CreatedAt = now
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		On("CONFLICT (email) DO UPDATE").
		Set("password_hash = EXCLUDED.password_hash").
		Set("external_id = EXCLUDED.external_id").
		Set("display_name = EXCLUDED.display_name").
		Set("auth_methods = EXCLUDED.auth_methods").
		Set("last_login_at = EXCLUDED.last_login_at").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// Ping verifies the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Email:        dbu.Email,
		PasswordHash: dbu.PasswordHash,
		ExternalID:   dbu.ExternalID,
		DisplayName:  dbu.DisplayName,
		AuthMethods:  methodsFromStrings(dbu.AuthMethods),
		CreatedAt:    dbu.CreatedAt,
		UpdatedAt:    dbu.UpdatedAt,
		LastLoginAt:  dbu.LastLoginAt,
	}
}

func mapModelToDBUser(u *User) *database.User {
	return &database.User{
		ID:           u.ID,
		Email:        NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		ExternalID:   u.ExternalID,
		DisplayName:  u.DisplayName,
		AuthMethods:  methodsToStrings(u.AuthMethods),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}
