package memory

import (
	"context"
	"testing"
	"time"

	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", Role: domain.RoleCustomer}))

	err := repo.Create(ctx, &domain.User{Email: "A@X.COM"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	u, err := repo.GetByEmail(ctx, "A@x.Com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotEmpty(t, u.ID)
}

func TestUserRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user := &domain.User{Email: "a@x.com", FullName: "Ada"}
	require.NoError(t, repo.Create(ctx, user))

	user.FullName = "mutated"
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FullName)

	got.FullName = "again"
	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.FullName)
}

func TestUserRepositoryCountActiveByRole(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", Role: domain.RoleAdministrator, IsActive: true}))
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "b@x.com", Role: domain.RoleAdministrator, IsActive: false}))
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "c@x.com", Role: domain.RoleCustomer, IsActive: true}))

	n, err := repo.CountActiveByRole(ctx, domain.RoleAdministrator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUserRepositoryVerificationSecretLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	secret := "hash-1"
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", EmailVerificationSecret: &secret}))

	u, err := repo.GetByVerificationSecret(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)

	_, err = repo.GetByVerificationSecret(ctx, "hash-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user := &domain.User{Email: "a@x.com"}
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.Delete(ctx, user.ID))

	_, err := repo.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, user.ID), repository.ErrNotFound)
}

func TestRefreshTokenRepositoryRevocation(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository()
	now := time.Now()

	for _, hash := range []string{"h1", "h2", "h3"} {
		require.NoError(t, repo.Create(ctx, &domain.RefreshToken{UserID: "u1", TokenHash: hash, ExpiresAt: now.Add(time.Hour)}))
	}
	require.NoError(t, repo.Create(ctx, &domain.RefreshToken{UserID: "u2", TokenHash: "other", ExpiresAt: now.Add(time.Hour)}))

	assert.ErrorIs(t, repo.Create(ctx, &domain.RefreshToken{TokenHash: "h1"}), repository.ErrDuplicateToken)

	revoked, err := repo.Revoke(ctx, "h1", now)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.Revoke(ctx, "h1", now)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = repo.Revoke(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, revoked)

	active, err := repo.GetActiveByUserID(ctx, "u1", now)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	n, err := repo.RevokeAllForUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err = repo.GetActiveByUserID(ctx, "u1", now)
	require.NoError(t, err)
	assert.Empty(t, active)

	other, err := repo.GetByTokenHash(ctx, "other")
	require.NoError(t, err)
	assert.False(t, other.IsRevoked)
}

func TestRefreshTokenRepositoryActiveExcludesExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &domain.RefreshToken{UserID: "u1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.RefreshToken{UserID: "u1", TokenHash: "stale", ExpiresAt: now.Add(-time.Hour)}))

	active, err := repo.GetActiveByUserID(ctx, "u1", now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].TokenHash)

	n, err := repo.DeleteByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPasswordResetRepositoryMarkUsedIsSingleShot(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordResetRepository()
	now := time.Now()

	reset := &domain.PasswordReset{UserID: "u1", Email: "a@x.com", TokenHash: "r1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, reset))

	require.NoError(t, repo.MarkUsed(ctx, reset.ID, now))
	assert.ErrorIs(t, repo.MarkUsed(ctx, reset.ID, now), repository.ErrNotFound)

	got, err := repo.GetByTokenHash(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.NotNil(t, got.UsedAt)
}

func TestPasswordResetRepositoryInvalidateUnused(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordResetRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &domain.PasswordReset{UserID: "u1", TokenHash: "r1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.PasswordReset{UserID: "u1", TokenHash: "r2", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.PasswordReset{UserID: "u2", TokenHash: "r3", ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.InvalidateUnusedForUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, p := range repo.ForUser("u1") {
		assert.False(t, p.IsUsable(now))
	}
	assert.True(t, repo.ForUser("u2")[0].IsUsable(now))
}
