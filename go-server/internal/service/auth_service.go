package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
	"github.com/fonsecaaso/linkdrop/go-server/internal/token"
)

const sessionTokenLength = 32

type SignupStatus struct {
	SignupAllowed bool `json:"signupAllowed"`
	IsFirstUser   bool `json:"isFirstUser"`
}

type Credentials struct {
	Email    string
	Password string
	Name     string
}

// AuthResult is a signed-in user and the signed cookie value of the new
// session.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	CheckSignup(ctx context.Context) (*SignupStatus, error)
	Signup(ctx context.Context, creds Credentials) (*AuthResult, error)
	Signin(ctx context.Context, email, password string) (*AuthResult, error)
	Signout(ctx context.Context, signed string) error
	Authenticate(ctx context.Context, signed string) (*model.Session, error)
	UpdateProfile(ctx context.Context, user *model.User, name *string, email string) (*model.User, error)
	ChangePassword(ctx context.Context, user *model.User, current, next string) (*AuthResult, error)
	SeedAdmin(ctx context.Context, email, password string) error
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	signer   *token.Signer
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, signer *token.Signer, ttl time.Duration) AuthService {
	return &authService{
		users:    users,
		sessions: sessions,
		signer:   signer,
		ttl:      ttl,
		now:      time.Now,
		logger:   zap.L().With(zap.String("component", "AuthService")),
	}
}

func (s *authService) CheckSignup(ctx context.Context) (*SignupStatus, error) {
	total, _, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &SignupStatus{SignupAllowed: total == 0, IsFirstUser: total == 0}, nil
}

// Signup creates the first account, which becomes an admin. Later accounts
// are created by admins.
func (s *authService) Signup(ctx context.Context, creds Credentials) (*AuthResult, error) {
	status, err := s.CheckSignup(ctx)
	if err != nil {
		return nil, err
	}
	if !status.SignupAllowed {
		return nil, ErrSignupClosed
	}

	user, err := newUser(creds, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserError(err)
	}

	s.logger.Info("First user signed up", zap.String("user_id", user.ID.String()))
	return s.startSession(ctx, user)
}

func (s *authService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Warn("Sign-in attempt on disabled account", zap.String("user_id", user.ID.String()))
		return nil, ErrAccountDisabled
	}

	return s.startSession(ctx, user)
}

// Signout deletes the session behind a cookie. Unknown or invalid cookies
// are ignored.
func (s *authService) Signout(ctx context.Context, signed string) error {
	claims, err := s.signer.Verify(signed)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, claims.SessionToken())
}

// Authenticate resolves a signed cookie to a live session. Sessions that
// expired or belong to a disabled user are deleted on sight.
func (s *authService) Authenticate(ctx context.Context, signed string) (*model.Session, error) {
	claims, err := s.signer.Verify(signed)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.GetByToken(ctx, claims.SessionToken())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, ErrUnauthenticated
	}

	if session.Expired(s.now()) || session.User == nil || !session.User.IsActive {
		if err := s.sessions.Delete(ctx, session.Token); err != nil {
			s.logger.Warn("Failed to delete stale session", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}

	return session, nil
}

func (s *authService) UpdateProfile(ctx context.Context, user *model.User, name *string, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if name != nil {
		name = optional(strings.TrimSpace(*name))
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, name, email)
	if err != nil {
		return nil, mapUserError(err)
	}
	return updated, nil
}

// ChangePassword signs the user out everywhere and returns a fresh session.
func (s *authService) ChangePassword(ctx context.Context, user *model.User, current, next string) (*AuthResult, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return nil, ErrWrongPassword
	}

	hash, err := hashPassword(next)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	updated := *user
	updated.PasswordHash = hash
	return s.startSession(ctx, &updated)
}

// SeedAdmin creates an admin account when the database has no users yet.
func (s *authService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	total, _, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	user, err := newUser(Credentials{Email: email, Password: password, Name: "Admin"}, model.RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil
		}
		return err
	}

	s.logger.Info("Seeded admin account", zap.String("email", user.Email))
	return nil
}

func (s *authService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *authService) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	session := &model.Session{
		ID:        uuid.New(),
		Token:     randomString(sessionTokenLength, codeAlphabet),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(session.Token, user.ID, session.ExpiresAt)
	if err != nil {
		s.logger.Error("Failed to sign session", zap.Error(err))
		return nil, err
	}

	return &AuthResult{User: user, Token: signed, ExpiresAt: session.ExpiresAt}, nil
}

func newUser(creds Credentials, role model.Role) (*model.User, error) {
	email := normalizeEmail(creds.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	hash, err := hashPassword(creds.Password)
	if err != nil {
		return nil, err
	}

	return &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         optional(strings.TrimSpace(creds.Name)),
		Role:         role,
		IsActive:     true,
	}, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrLastAdmin):
		return ErrLastAdmin
	default:
		return err
	}
}
