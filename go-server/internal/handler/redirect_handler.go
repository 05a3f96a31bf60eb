package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type LinkResolver interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (*service.Resolution, error)
}

type PasswordRequiredResponse struct {
	ErrorResponse
	Link *service.PasswordPrompt `json:"link"`
}

type RedirectHandler struct {
	resolver LinkResolver
	logger   *zap.Logger
}

func NewRedirectHandler(resolver LinkResolver) *RedirectHandler {
	return &RedirectHandler{
		resolver: resolver,
		logger:   zap.L().With(zap.String("component", "RedirectHandler")),
	}
}

// Redirect serves GET /:shortCode?password=&preview=true.
func (h *RedirectHandler) Redirect(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), service.ResolveRequest{
		ShortCode: c.Param("shortCode"),
		Password:  c.Query("password"),
		Preview:   c.Query("preview") == "true",
		Visitor:   visitorOf(c),
	})
	h.respond(c, res, err)
}

// Download serves GET /download/:filename?password=. File links go through
// the same checks as their short code.
func (h *RedirectHandler) Download(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), service.ResolveRequest{
		Filename: c.Param("filename"),
		Password: c.Query("password"),
		Visitor:  visitorOf(c),
	})
	h.respond(c, res, err)
}

func visitorOf(c *gin.Context) service.Visitor {
	return service.Visitor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
}

func (h *RedirectHandler) respond(c *gin.Context, res *service.Resolution, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	switch res.Outcome {
	case service.OutcomeAllow:
		c.Redirect(http.StatusFound, res.Destination)
	case service.OutcomePreview:
		c.JSON(http.StatusOK, res.Preview)
	case service.OutcomeNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Short link not found", Code: "LINK_NOT_FOUND"})
	case service.OutcomeExpired:
		c.JSON(http.StatusGone, ErrorResponse{Error: "This link has expired", Code: "LINK_EXPIRED"})
	case service.OutcomeLimitReached:
		c.JSON(http.StatusGone, ErrorResponse{Error: "This link has reached its click limit", Code: "LINK_LIMIT_REACHED"})
	case service.OutcomePasswordRequired:
		c.JSON(http.StatusUnauthorized, PasswordRequiredResponse{
			ErrorResponse: ErrorResponse{Error: "This link is password protected", Code: "PASSWORD_REQUIRED"},
			Link:          res.Prompt,
		})
	default:
		h.logger.Error("Unknown resolution outcome", zap.String("outcome", string(res.Outcome)))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "INTERNAL_ERROR"})
	}
}
