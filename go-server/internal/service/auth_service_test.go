package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
	"github.com/fonsecaaso/linkdrop/go-server/internal/token"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func setupAuthService(t *testing.T) (*authService, *MockUserRepository, *MockSessionRepository) {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	users := new(MockUserRepository)
	sessions := new(MockSessionRepository)
	svc := NewAuthService(users, sessions, token.NewSigner(testSessionSecret), 7*24*time.Hour).(*authService)
	return svc, users, sessions
}

func userWithPassword(t *testing.T, password string) *model.User {
	return &model.User{
		ID:           uuid.New(),
		Email:        "ana@example.com",
		PasswordHash: *hashFor(t, password),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    testNow,
	}
}

func TestCheckSignup(t *testing.T) {
	svc, users, _ := setupAuthService(t)
	ctx := context.Background()

	users.On("Count", ctx).Return(0, 0, nil).Once()
	status, err := svc.CheckSignup(ctx)
	require.NoError(t, err)
	assert.True(t, status.SignupAllowed)
	assert.True(t, status.IsFirstUser)

	users.On("Count", ctx).Return(2, 2, nil).Once()
	status, err = svc.CheckSignup(ctx)
	require.NoError(t, err)
	assert.False(t, status.SignupAllowed)
}

func TestSignup_FirstUserBecomesAdmin(t *testing.T) {
	svc, users, sessions := setupAuthService(t)
	ctx := context.Background()

	users.On("Count", ctx).Return(0, 0, nil)
	var created *model.User
	users.On("Create", ctx, mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.User) }).
		Return(nil).Once()
	sessions.On("Create", ctx, mock.AnythingOfType("*model.Session")).Return(nil).Once()

	res, err := svc.Signup(ctx, Credentials{Email: " Ana@Example.com ", Password: "secret1", Name: "Ana"})

	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, created.Role)
	assert.Equal(t, "ana@example.com", created.Email)
	assert.NotEqual(t, "secret1", created.PasswordHash)
	assert.NotEmpty(t, res.Token)
	sessions.AssertExpectations(t)
}

func TestSignup_Rejected(t *testing.T) {
	testCases := []struct {
		name     string
		users    int
		creds    Credentials
		expected error
	}{
		{"closed", 1, Credentials{Email: "a@b.c", Password: "secret1"}, ErrSignupClosed},
		{"short password", 0, Credentials{Email: "a@b.c", Password: "12345"}, ErrPasswordTooShort},
		{"missing email", 0, Credentials{Email: "  ", Password: "secret1"}, ErrEmailRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, users, _ := setupAuthService(t)
			users.On("Count", mock.Anything).Return(tc.users, tc.users, nil)

			_, err := svc.Signup(context.Background(), tc.creds)

			assert.ErrorIs(t, err, tc.expected)
			users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestSignin(t *testing.T) {
	user := userWithPassword(t, "secret1")
	disabled := userWithPassword(t, "secret1")
	disabled.IsActive = false

	testCases := []struct {
		name     string
		found    *model.User
		findErr  error
		password string
		expected error
	}{
		{"success", user, nil, "secret1", nil},
		{"wrong password", user, nil, "nope", ErrInvalidCredentials},
		{"unknown email", nil, repository.ErrUserNotFound, "secret1", ErrInvalidCredentials},
		{"disabled account", disabled, nil, "secret1", ErrAccountDisabled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, users, sessions := setupAuthService(t)
			ctx := context.Background()

			users.On("GetByEmail", ctx, "ana@example.com").Return(tc.found, tc.findErr)
			sessions.On("Create", ctx, mock.Anything).Return(nil)

			res, err := svc.Signin(ctx, "ANA@example.com", tc.password)

			if tc.expected != nil {
				assert.ErrorIs(t, err, tc.expected)
				sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, res.User.ID)
		})
	}
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	svc, users, sessions := setupAuthService(t)
	ctx := context.Background()
	user := userWithPassword(t, "secret1")

	users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	var stored *model.Session
	sessions.On("Create", ctx, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*model.Session) }).
		Return(nil)

	res, err := svc.Signin(ctx, user.Email, "secret1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Token, sessionTokenLength)

	stored.User = user
	sessions.On("GetByToken", ctx, stored.Token).Return(stored, nil)

	session, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
}

func TestAuthenticate_StaleSessionsAreDeleted(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *model.Session)
	}{
		{"expired", func(s *model.Session) { s.ExpiresAt = time.Now().Add(-time.Second) }},
		{"disabled user", func(s *model.Session) { s.User.IsActive = false }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, sessions := setupAuthService(t)
			ctx := context.Background()
			user := &model.User{ID: uuid.New(), IsActive: true}
			session := &model.Session{Token: "tok", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour), User: user}
			signed, err := svc.signer.Sign("tok", user.ID, time.Now().Add(time.Hour))
			require.NoError(t, err)
			tc.mutate(session)

			sessions.On("GetByToken", ctx, "tok").Return(session, nil)
			sessions.On("Delete", ctx, "tok").Return(nil).Once()

			_, err = svc.Authenticate(ctx, signed)

			assert.ErrorIs(t, err, ErrUnauthenticated)
			sessions.AssertExpectations(t)
		})
	}
}

func TestAuthenticate_InvalidCookie(t *testing.T) {
	svc, _, sessions := setupAuthService(t)

	_, err := svc.Authenticate(context.Background(), "garbage")

	assert.ErrorIs(t, err, ErrUnauthenticated)
	sessions.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestChangePassword(t *testing.T) {
	svc, users, sessions := setupAuthService(t)
	ctx := context.Background()
	user := userWithPassword(t, "secret1")

	_, err := svc.ChangePassword(ctx, user, "wrong", "another1")
	assert.ErrorIs(t, err, ErrWrongPassword)

	users.On("UpdatePassword", ctx, user.ID, mock.AnythingOfType("string")).Return(nil).Once()
	sessions.On("DeleteByUser", ctx, user.ID).Return(nil).Once()
	sessions.On("Create", ctx, mock.Anything).Return(nil).Once()

	res, err := svc.ChangePassword(ctx, user, "secret1", "another1")

	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	users.AssertExpectations(t)
	sessions.AssertExpectations(t)
	sessions.AssertCalled(t, "DeleteByUser", ctx, user.ID)
}

func TestUpdateProfile(t *testing.T) {
	svc, users, _ := setupAuthService(t)
	ctx := context.Background()
	user := userWithPassword(t, "secret1")

	_, err := svc.UpdateProfile(ctx, user, strPtr("Ana"), " ")
	assert.ErrorIs(t, err, ErrEmailRequired)

	users.On("UpdateProfile", ctx, user.ID, strPtr("Ana"), "new@example.com").Return(nil, repository.ErrEmailTaken).Once()
	_, err = svc.UpdateProfile(ctx, user, strPtr(" Ana "), "New@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSeedAdmin(t *testing.T) {
	svc, users, _ := setupAuthService(t)
	ctx := context.Background()

	assert.NoError(t, svc.SeedAdmin(ctx, "", ""))
	users.AssertNotCalled(t, "Count", mock.Anything)

	users.On("Count", ctx).Return(1, 1, nil).Once()
	assert.NoError(t, svc.SeedAdmin(ctx, "admin@example.com", "secret1"))
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	users.On("Count", ctx).Return(0, 0, nil).Once()
	users.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.Role == model.RoleAdmin && u.Email == "admin@example.com"
	})).Return(nil).Once()
	assert.NoError(t, svc.SeedAdmin(ctx, "admin@example.com", "secret1"))
	users.AssertExpectations(t)
}
