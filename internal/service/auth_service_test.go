package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediconnect/telemed-api/internal/models"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
)

type userRepoStub struct {
	user          *models.User
	findErr       error
	lastLoginSets int
}

func (r *userRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.user == nil || r.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return r.user, nil
}

func (r *userRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.user, nil
}

func (r *userRepoStub) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	r.lastLoginSets++
	return nil
}

func authFixture(t *testing.T, repo *userRepoStub) *AuthService {
	t.Helper()
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "telemed-api",
	})
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "staff@example.com",
		PasswordHash: string(hash),
		FullName:     "Front Desk",
		Role:         models.RoleStaff,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &userRepoStub{user: testUser(t, "s3cret")}
	svc := authFixture(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, repo.lastLoginSets)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := authFixture(t, &userRepoStub{user: testUser(t, "s3cret")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := authFixture(t, &userRepoStub{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := testUser(t, "s3cret")
	user.Active = false
	svc := authFixture(t, &userRepoStub{user: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRepoFailure(t *testing.T) {
	svc := authFixture(t, &userRepoStub{findErr: errors.New("connection refused")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStoreRead.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc := authFixture(t, &userRepoStub{user: testUser(t, "s3cret")})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "s3cret"})
	require.NoError(t, err)

	other := NewAuthService(&userRepoStub{}, nil, zap.NewNop(), AuthConfig{Secret: "different-secret", Expiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
