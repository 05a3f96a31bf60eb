package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/middleware"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type CreateUserRequest struct {
	Email    string     `json:"email" binding:"required"`
	Password string     `json:"password" binding:"required"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

type AdminHandler struct {
	admin  service.AdminService
	logger *zap.Logger
}

func NewAdminHandler(admin service.AdminService) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: zap.L().With(zap.String("component", "AdminHandler")),
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	user, err := h.admin.CreateUser(c.Request.Context(), service.CreateUserRequest{
		Credentials: service.Credentials{Email: req.Email, Password: req.Password, Name: req.Name},
		Role:        req.Role,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var action service.UserAction
	if err := c.ShouldBindJSON(&action); err != nil {
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	user, err := h.admin.UpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, action)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
