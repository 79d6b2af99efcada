package services

import (
	"context"
	"strings"
	"testing"

	"github.com/devfolio/apiserver/internal/store"
	"github.com/devfolio/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo mimics the store's behavior in memory, including the
// case-insensitive unique email constraint.
type fakeUserRepo struct {
	byID map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]types.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range f.byID {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	f.byID[user.ID] = user
	return user, nil
}

func TestRegisterThenAuthenticate(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	created, err := svc.Register(ctx, "Ann", "ann@x.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "secret123", created.PasswordHash)
	assert.NotContains(t, created.PasswordHash, "secret123")

	authed, err := svc.Authenticate(ctx, "ann@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ann", "ann@x.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "ANN@X.COM", "differentpw")
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestAuthenticateUnifiedFailures(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ann", "ann@x.com", "secret123")
	require.NoError(t, err)

	_, wrongPassword := svc.Authenticate(ctx, "ann@x.com", "wrong-password")
	_, unknownEmail := svc.Authenticate(ctx, "nobody@x.com", "secret123")

	// Wrong password and unknown email are indistinguishable.
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthenticateEmailCaseInsensitive(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	created, err := svc.Register(ctx, "Ann", "ann@x.com", "secret123")
	require.NoError(t, err)

	authed, err := svc.Authenticate(ctx, "ANN@X.COM", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
}
