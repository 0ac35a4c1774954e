package auth_test

import (
	"context"
	"testing"

	domain "credauth/backend/internal/domain/auth"
	usecase "credauth/backend/internal/usecase/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_CreatesThenSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := []usecase.SeedUser{
		{Email: "admin@x.com", Password: "Admin@123", Name: "Admin User"},
		{Email: "john@x.com", Password: "Password@123", Name: "John Doe"},
	}

	result, err := f.svc.Seed(ctx, users)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@x.com", "john@x.com"}, result.Created)
	assert.Empty(t, result.Existing)
	assert.Equal(t, 2, f.repo.Len())

	result, err = f.svc.Seed(ctx, users)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{"admin@x.com", "john@x.com"}, result.Existing)
	assert.Equal(t, 2, f.repo.Len())

	_, err = f.svc.Login(ctx, domain.Credentials{Email: "john@x.com", Password: "Password@123"})
	assert.NoError(t, err, "seeded users go through the normal hashing path")
}

func TestSeed_StopsOnInvalidUser(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Seed(context.Background(), []usecase.SeedUser{
		{Email: "ok@x.com", Password: "pw", Name: "Ok"},
		{Email: "", Password: "pw", Name: "Broken"},
		{Email: "never@x.com", Password: "pw", Name: "Never"},
	})
	require.ErrorIs(t, err, domain.ErrEmailRequired)
	assert.Equal(t, []string{"ok@x.com"}, result.Created)
	assert.Equal(t, 1, f.repo.Len())
}
