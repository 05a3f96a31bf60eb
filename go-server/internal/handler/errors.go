package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{repository.ErrLinkNotFound, http.StatusNotFound, "LINK_NOT_FOUND"},
	{repository.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},

	{service.ErrInvalidURL, http.StatusBadRequest, "INVALID_URL"},
	{service.ErrMissingTarget, http.StatusBadRequest, "MISSING_TARGET"},
	{service.ErrInvalidAlias, http.StatusBadRequest, "INVALID_ALIAS"},
	{service.ErrInvalidMaxClicks, http.StatusBadRequest, "INVALID_MAX_CLICKS"},
	{service.ErrInvalidExpiry, http.StatusBadRequest, "INVALID_EXPIRATION"},
	{service.ErrInvalidDays, http.StatusBadRequest, "INVALID_DAYS"},
	{service.ErrPasswordTooShort, http.StatusBadRequest, "PASSWORD_TOO_SHORT"},
	{service.ErrEmailRequired, http.StatusBadRequest, "EMAIL_REQUIRED"},
	{service.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
	{service.ErrUnknownAction, http.StatusBadRequest, "UNKNOWN_ACTION"},
	{service.ErrWrongPassword, http.StatusBadRequest, "WRONG_PASSWORD"},

	{service.ErrAliasTaken, http.StatusConflict, "ALIAS_TAKEN"},
	{service.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN"},
	{service.ErrLastAdmin, http.StatusConflict, "LAST_ADMIN"},

	{service.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},

	{service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{service.ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED"},
	{service.ErrSignupClosed, http.StatusForbidden, "SIGNUP_CLOSED"},
	{service.ErrSelfModification, http.StatusForbidden, "SELF_MODIFICATION"},
	{service.ErrSelfDeletion, http.StatusForbidden, "SELF_DELETION"},

	{service.ErrFileUpload, http.StatusBadGateway, "FILE_UPLOAD_FAILED"},
}

// respondError writes the JSON error for err. Unmapped errors are logged and
// reported as 500 without internal details.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logger.Error("Request failed", zap.Error(err), zap.String("code", m.code))
			}
			c.JSON(m.status, ErrorResponse{Error: m.target.Error(), Code: m.code})
			return
		}
	}

	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrIDGenerationMax):
		logger.Error("ID generation max attempts reached", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Service temporarily unavailable",
			Code:  "ID_GENERATION_FAILED",
		})
	case errors.Is(err, repository.ErrDatabaseError):
		logger.Error("Database error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Database error",
			Code:  "DB_ERROR",
		})
	default:
		logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}

func badRequest(c *gin.Context, code, message string, details error) {
	resp := ErrorResponse{Error: message, Code: code}
	if details != nil {
		resp.Details = details.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
