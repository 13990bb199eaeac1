package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/models"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
)

const testSigningKey = "test-signing-key"

func newTestService() (*Service, storage.StorageInterface) {
	store := storage.NewMemoryStorage()
	return NewService(store, testSigningKey, nil), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	token, user, err := svc.Register(ctx, "alice", "alice@example.com", "Pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.ID.IsZero())

	// The issued token resolves back to the same user.
	userID, role, err := ParseToken(testSigningKey, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), userID)
	assert.Equal(t, models.RoleUser, role)

	loginToken, loginUser, err := svc.Login(ctx, "alice@example.com", "Pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, loginToken)
	assert.Equal(t, user.ID, loginUser.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "a", "alice@example.com", "Pass1234")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, _, err = svc.Register(ctx, "alice", "not-an-email", "Pass1234")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, _, err = svc.Register(ctx, "alice", "alice@example.com", "short")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "Pass1234")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "bob", "alice@example.com", "Pass5678")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, _, err = svc.Register(ctx, "alice", "other@example.com", "Pass5678")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLoginFailuresAreIndistinct(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "Pass1234")
	require.NoError(t, err)

	_, _, unknownErr := svc.Login(ctx, "nobody@example.com", "Pass1234")
	assert.ErrorIs(t, unknownErr, errs.ErrUnauthorized)

	_, _, wrongPassErr := svc.Login(ctx, "alice@example.com", "WrongPass1")
	assert.ErrorIs(t, wrongPassErr, errs.ErrUnauthorized)

	// Unknown email and wrong password read the same to the caller.
	assert.Equal(t, unknownErr.Error(), wrongPassErr.Error())
}

func TestGetUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, user, err := svc.Register(ctx, "alice", "alice@example.com", "Pass1234")
	require.NoError(t, err)

	found, err := svc.GetUser(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = svc.GetUser(ctx, "not-a-hex-id")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestService()

	token, err := svc.CreateAuthToken("abc", models.RoleUser)
	require.NoError(t, err)

	_, _, err = ParseToken("wrong-key", token)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, _, err = ParseToken(testSigningKey, "garbage.token.value")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
