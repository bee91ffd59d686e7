package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusware/atp-api/internal/models"
	appErrors "github.com/campusware/atp-api/pkg/errors"
)

type fakeAuthRepo struct {
	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

func newFakeAuthRepo(users ...models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{users: map[string]models.User{}, tokens: map[string]models.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeAuthRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	u := f.users[id]
	u.LastLogin = &at
	f.users[id] = u
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = *token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, at time.Time) error {
	for key, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &at
			f.tokens[key] = t
		}
	}
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string, at time.Time) error {
	for key, t := range f.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &at
			f.tokens[key] = t
		}
	}
	return nil
}

func testAuthService(repo *fakeAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "atp-api",
	})
}

func teacherUser(t *testing.T) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return models.User{
		ID:           "T001",
		Email:        "teacher@example.edu",
		PasswordHash: string(hash),
		FullName:     "Ada Teacher",
		Role:         models.RoleTeacher,
		Active:       true,
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeAuthRepo(teacherUser(t))
	svc := testAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@example.edu", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "T001", resp.User.ID)
	require.Equal(t, models.RoleTeacher, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "T001", claims.UserID)
	require.Equal(t, models.RoleTeacher, claims.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newFakeAuthRepo(teacherUser(t))
	svc := testAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@example.edu", Password: "wrong"})
	requireErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.edu", Password: "s3cret"})
	requireErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := teacherUser(t)
	user.Active = false
	svc := testAuthService(newFakeAuthRepo(user))

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@example.edu", Password: "s3cret"})
	requireErrorCode(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newFakeAuthRepo(teacherUser(t))
	svc := testAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@example.edu", Password: "s3cret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	requireErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testAuthService(newFakeAuthRepo())
	_, err := svc.ValidateToken("not-a-token")
	requireErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestLogout(t *testing.T) {
	repo := newFakeAuthRepo(teacherUser(t))
	svc := testAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@example.edu", Password: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "T001"))

	err = svc.Logout(context.Background(), login.RefreshToken, "T999")
	requireErrorCode(t, err, appErrors.ErrForbidden.Code)
}
