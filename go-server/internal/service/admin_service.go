package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/filestore"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
)

const (
	ActionBan            = "ban"
	ActionActivate       = "activate"
	ActionChangeRole     = "changeRole"
	ActionChangePassword = "changePassword"
)

type CreateUserRequest struct {
	Credentials
	Role model.Role
}

type UserAction struct {
	Action      string     `json:"action"`
	Role        model.Role `json:"role"`
	NewPassword string     `json:"newPassword"`
}

type AdminService interface {
	ListUsers(ctx context.Context) ([]model.UserWithStats, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error)
	UpdateUser(ctx context.Context, actor *model.User, id uuid.UUID, action UserAction) (*model.User, error)
	DeleteUser(ctx context.Context, actor *model.User, id uuid.UUID) error
}

type adminService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	links    repository.LinkRepository
	files    filestore.Store
	logger   *zap.Logger
}

func NewAdminService(users repository.UserRepository, sessions repository.SessionRepository, links repository.LinkRepository, files filestore.Store) AdminService {
	return &adminService{
		users:    users,
		sessions: sessions,
		links:    links,
		files:    files,
		logger:   zap.L().With(zap.String("component", "AdminService")),
	}
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.UserWithStats, error) {
	return s.users.ListWithStats(ctx)
}

func (s *adminService) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := newUser(req.Credentials, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserError(err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

// UpdateUser applies one account action. Admins may only change their own
// password.
func (s *adminService) UpdateUser(ctx context.Context, actor *model.User, id uuid.UUID, action UserAction) (*model.User, error) {
	if actor.ID == id && action.Action != ActionChangePassword {
		return nil, ErrSelfModification
	}

	var err error
	switch action.Action {
	case ActionBan:
		if err = s.users.SetActive(ctx, id, false); err == nil {
			err = s.sessions.DeleteByUser(ctx, id)
		}
	case ActionActivate:
		err = s.users.SetActive(ctx, id, true)
	case ActionChangeRole:
		if !action.Role.Valid() {
			return nil, ErrInvalidRole
		}
		err = s.users.SetRole(ctx, id, action.Role)
	case ActionChangePassword:
		var hash string
		if hash, err = hashPassword(action.NewPassword); err != nil {
			return nil, err
		}
		if err = s.users.UpdatePassword(ctx, id, hash); err == nil {
			err = s.sessions.DeleteByUser(ctx, id)
		}
	default:
		return nil, ErrUnknownAction
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("User updated",
		zap.String("user_id", id.String()),
		zap.String("action", action.Action),
		zap.String("actor", actor.ID.String()),
	)
	return s.users.GetByID(ctx, id)
}

// DeleteUser removes the account with its links and clicks, then deletes
// the stored files of those links.
func (s *adminService) DeleteUser(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if actor.ID == id {
		return ErrSelfDeletion
	}

	files, err := s.links.ListFilesByUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return mapUserError(err)
	}

	for _, f := range files {
		if err := s.files.Delete(ctx, f.URL); err != nil {
			s.logger.Warn("Failed to delete stored file", zap.Error(err), zap.String("filename", f.Filename))
		}
	}

	s.logger.Info("User deleted",
		zap.String("user_id", id.String()),
		zap.Int("files", len(files)),
		zap.String("actor", actor.ID.String()),
	)
	return nil
}
