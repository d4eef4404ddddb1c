package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/pkg/database"
)

// passwordResetRepository implements PasswordResetRepository interface
type passwordResetRepository struct {
	db *database.Postgres
}

// NewPasswordResetRepository creates a new password reset repository
func NewPasswordResetRepository(db *database.Postgres) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, reset *domain.PasswordReset) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, email, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if reset.ID == "" {
		reset.ID = uuid.New().String()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		reset.ID,
		reset.UserID,
		reset.Email,
		reset.TokenHash,
		reset.ExpiresAt,
		reset.Used,
		reset.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reset token with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create password reset: %w", err)
	}

	return nil
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error) {
	query := `
		SELECT id, user_id, email, token_hash, expires_at, used, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	reset := &domain.PasswordReset{}
	var usedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, tokenHash).Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Email,
		&reset.TokenHash,
		&reset.ExpiresAt,
		&reset.Used,
		&usedAt,
		&reset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reset token with hash not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get password reset by hash: %w", err)
	}

	if usedAt.Valid {
		reset.UsedAt = &usedAt.Time
	}

	return reset, nil
}

func (r *passwordResetRepository) InvalidateUnusedForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE, used_at = $2
		WHERE user_id = $1 AND used = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate password resets: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark password reset used: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("unused password reset %s", id))
}

func (r *passwordResetRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete password resets: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
