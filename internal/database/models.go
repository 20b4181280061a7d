package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,nullzero"`
	ExternalID   string     `bun:"external_id,nullzero"`
	DisplayName  string     `bun:"display_name,notnull"`
	AuthMethods  []string   `bun:"auth_methods,array"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
}
