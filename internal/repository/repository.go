package repository

import (
	"github.com/prperemyshlev/aths/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User          UserRepository
	RefreshToken  RefreshTokenRepository
	PasswordReset PasswordResetRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		RefreshToken:  NewRefreshTokenRepository(db),
		PasswordReset: NewPasswordResetRepository(db),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
