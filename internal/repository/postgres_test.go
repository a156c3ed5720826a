package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/backend/internal/domain"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.InitSchema(ctx))
	return repo
}

func TestPostgresRepository_Accounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	email := "ann-" + uuid.NewString()[:8] + "@example.com"
	hash := "$2a$04$hash"

	created, err := repo.CreateAccount(ctx, domain.CreateAccountParams{
		Email:        email,
		PasswordHash: &hash,
		DisplayName:  "Ann",
	})
	require.NoError(t, err)
	assert.Equal(t, email, created.Email)

	_, err = repo.CreateAccount(ctx, domain.CreateAccountParams{Email: email, DisplayName: "Dup"})
	assert.ErrorIs(t, err, domain.ErrEmailInUse)

	exists, err := repo.AccountExistsByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, exists)

	acc, gotHash, err := repo.GetAccountWithPassword(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, acc.ID)
	assert.Equal(t, hash, gotHash)

	googleID := "g-" + uuid.NewString()
	linked, err := repo.LinkGoogleAccount(ctx, created.ID, googleID)
	require.NoError(t, err)
	assert.True(t, linked.EmailVerified)

	byGoogle, err := repo.GetAccountByGoogleID(ctx, googleID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byGoogle.ID)

	_, err = repo.GetAccountByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
