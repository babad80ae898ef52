package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
	_ "github.com/txgate/txgate/testing"
)

type fixture struct {
	repo     *memoryRepo
	hasher   *countingHasher
	resolver staticResolver
	tokens   *auth.TokenIssuer
	svc      *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", "txgate", 0)
	require.NoError(t, err)
	f := &fixture{
		repo:     newMemoryRepo(),
		hasher:   &countingHasher{},
		resolver: staticResolver{},
		tokens:   tokens,
	}
	f.svc = auth.NewService(f.repo, f.hasher, tokens, f.resolver, nil, nil)
	return f
}

func (f *fixture) addUser(t *testing.T, email, password string, perms ...string) *auth.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := f.repo.Create(context.Background(), email, hash)
	require.NoError(t, err)
	f.resolver[u.ID] = rbac.NewPermissionSet(perms...)
	return u
}

func TestLoginUnknownEmailSkipsPasswordCompare(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "auditor@example.com", "password123")

	_, err := f.svc.Login(context.Background(), "ghost@example.com", "password123")

	require.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.Equal(t, "User not found. Please check your email address.", shared.UserSafeMessage(err))
	assert.Equal(t, int32(0), f.hasher.compares.Load())
}

func TestLoginWrongPasswordHasDistinctMessage(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "auditor@example.com", "password123")

	_, unknownErr := f.svc.Login(context.Background(), "ghost@example.com", "x")
	_, wrongErr := f.svc.Login(context.Background(), "auditor@example.com", "wrong-password")

	require.ErrorIs(t, wrongErr, shared.ErrUnauthorized)
	assert.Equal(t, "Incorrect password. Please try again.", shared.UserSafeMessage(wrongErr))
	assert.NotEqual(t, shared.UserSafeMessage(unknownErr), shared.UserSafeMessage(wrongErr))
	assert.Equal(t, int32(1), f.hasher.compares.Load())
}

func TestLoginSuccessReturnsPermissions(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "inputter@example.com", "password123", shared.PermTransactionsView, shared.PermTransactionsInput)

	result, err := f.svc.Login(context.Background(), "  Inputter@Example.com ", "password123")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, u.ID, result.User.ID)
	assert.Equal(t, "inputter@example.com", result.User.Email)
	assert.Equal(t, []string{shared.PermTransactionsInput, shared.PermTransactionsView}, result.User.Permissions)

	principal, err := f.tokens.Parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, principal.UserID)
	assert.Equal(t, u.Email, principal.Email)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "approver@example.com", "password123")

	_, err := f.svc.Register(context.Background(), "APPROVER@example.com", "password456")

	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, "An account with this email already exists. Please try logging in instead.", shared.UserSafeMessage(err))
	assert.Equal(t, 1, f.repo.count())
}

func TestRegisterCreatesUserWithEmptyPermissions(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Register(context.Background(), "new@example.com", "password123")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "new@example.com", result.User.Email)
	assert.NotNil(t, result.User.Permissions)
	assert.Empty(t, result.User.Permissions)
	assert.Equal(t, 1, f.repo.count())

	stored, err := f.repo.FindByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.NoError(t, f.hasher.Compare(stored.PasswordHash, "password123"))
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "approver@example.com", "password123", shared.PermTransactionsView, shared.PermTransactionsApprove)

	summary, err := f.svc.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermTransactionsApprove, shared.PermTransactionsView}, summary.Permissions)

	_, err = f.svc.Me(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}
