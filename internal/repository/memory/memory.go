// Package memory provides map-backed repositories with the same semantics
// as the Postgres implementations. Records are copied on the way in and out.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/repository"
)

// NewRepositories returns a fresh, empty set of repositories
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		User:          NewUserRepository(),
		RefreshToken:  NewRefreshTokenRepository(),
		PasswordReset: NewPasswordResetRepository(),
	}
}

// UserRepository is an in-memory repository.UserRepository
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.findByEmail(user.Email); ok {
		return fmt.Errorf("user with email %s already exists: %w", user.Email, repository.ErrDuplicateEmail)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.findByEmail(email); ok {
		return cloneUser(u), nil
	}
	return nil, fmt.Errorf("user with email %s not found: %w", email, repository.ErrNotFound)
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, fmt.Errorf("user with id %s not found: %w", id, repository.ErrNotFound)
}

func (r *UserRepository) GetByVerificationSecret(_ context.Context, secretHash string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.EmailVerificationSecret != nil && *u.EmailVerificationSecret == secretHash {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user with verification secret not found: %w", repository.ErrNotFound)
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", user.ID, repository.ErrNotFound)
	}
	if other, ok := r.findByEmail(user.Email); ok && other.ID != user.ID {
		return fmt.Errorf("user with email %s already exists: %w", user.Email, repository.ErrDuplicateEmail)
	}

	user.UpdatedAt = time.Now()
	updated := cloneUser(user)
	updated.CreatedAt = existing.CreatedAt
	updated.LastLoginAt = existing.LastLoginAt
	r.users[user.ID] = updated
	return nil
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", userID, repository.ErrNotFound)
	}
	u.LastLoginAt = &at
	return nil
}

func (r *UserRepository) CountActiveByRole(_ context.Context, role domain.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, u := range r.users {
		if u.Role == role && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user with id %s not found: %w", id, repository.ErrNotFound)
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) findByEmail(email string) (*domain.User, bool) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return nil, false
}

// RefreshTokenRepository is an in-memory repository.RefreshTokenRepository
type RefreshTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*domain.RefreshToken // by hash
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.TokenHash]; ok {
		return fmt.Errorf("token with hash already exists: %w", repository.ErrDuplicateToken)
	}
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

func (r *RefreshTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("token with hash not found: %w", repository.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepository) GetActiveByUserID(_ context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsUsable(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.RefreshToken) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *RefreshTokenRepository) Revoke(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok || t.IsRevoked {
		return false, nil
	}
	t.IsRevoked = true
	t.RevokedAt = &at
	return true, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

// PasswordResetRepository is an in-memory repository.PasswordResetRepository
type PasswordResetRepository struct {
	mu     sync.RWMutex
	resets map[string]*domain.PasswordReset // by id
}

func NewPasswordResetRepository() *PasswordResetRepository {
	return &PasswordResetRepository{resets: make(map[string]*domain.PasswordReset)}
}

func (r *PasswordResetRepository) Create(_ context.Context, reset *domain.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.resets {
		if existing.TokenHash == reset.TokenHash {
			return fmt.Errorf("reset token with hash already exists: %w", repository.ErrDuplicateToken)
		}
	}
	if reset.ID == "" {
		reset.ID = uuid.New().String()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	cp := *reset
	r.resets[reset.ID] = &cp
	return nil
}

func (r *PasswordResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.PasswordReset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.resets {
		if p.TokenHash == tokenHash {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("reset token with hash not found: %w", repository.ErrNotFound)
}

func (r *PasswordResetRepository) InvalidateUnusedForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, p := range r.resets {
		if p.UserID == userID && !p.Used {
			p.Used = true
			p.UsedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *PasswordResetRepository) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.resets[id]
	if !ok || p.Used {
		return fmt.Errorf("unused password reset %s not found: %w", id, repository.ErrNotFound)
	}
	p.Used = true
	p.UsedAt = &at
	return nil
}

func (r *PasswordResetRepository) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.resets {
		if p.UserID == userID {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

// ForUser lists every reset record of a user, oldest first. Test helper.
func (r *PasswordResetRepository) ForUser(userID string) []domain.PasswordReset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.PasswordReset
	for _, p := range r.resets {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b domain.PasswordReset) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.EmailVerificationSecret != nil {
		s := *u.EmailVerificationSecret
		cp.EmailVerificationSecret = &s
	}
	if u.EmailVerificationExpiresAt != nil {
		t := *u.EmailVerificationExpiresAt
		cp.EmailVerificationExpiresAt = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}

var (
	_ repository.UserRepository          = (*UserRepository)(nil)
	_ repository.RefreshTokenRepository  = (*RefreshTokenRepository)(nil)
	_ repository.PasswordResetRepository = (*PasswordResetRepository)(nil)
)
