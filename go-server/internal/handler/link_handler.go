package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/filestore"
	"github.com/fonsecaaso/linkdrop/go-server/internal/middleware"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

// datetimeLocalLayout is what HTML datetime-local inputs submit.
const datetimeLocalLayout = "2006-01-02T15:04"

var jsonNull = []byte("null")

type ShortenJSONRequest struct {
	URL            string  `json:"url"`
	CustomAlias    string  `json:"customAlias"`
	Password       string  `json:"password"`
	Description    string  `json:"description"`
	ExpirationDate *string `json:"expirationDate"`
	MaxClicks      *int    `json:"maxClicks"`
	OGTitle        string  `json:"ogTitle"`
	OGDescription  string  `json:"ogDescription"`
}

// UpdateLinkRequest distinguishes absent fields from explicit nulls for the
// expiration date and click limit: null clears them.
type UpdateLinkRequest struct {
	Description    *string         `json:"description"`
	OGTitle        *string         `json:"ogTitle"`
	OGDescription  *string         `json:"ogDescription"`
	OGImage        *string         `json:"ogImage"`
	Password       *string         `json:"password"`
	ExpirationDate json.RawMessage `json:"expirationDate"`
	MaxClicks      json.RawMessage `json:"maxClicks"`
}

type LinkHandler struct {
	links  service.LinkService
	logger *zap.Logger
}

func NewLinkHandler(links service.LinkService) *LinkHandler {
	return &LinkHandler{
		links:  links,
		logger: zap.L().With(zap.String("component", "LinkHandler")),
	}
}

// Shorten accepts multipart forms (required for uploads) and JSON bodies.
func (h *LinkHandler) Shorten(c *gin.Context) {
	var (
		req     service.ShortenRequest
		cleanup func()
		err     error
	)
	if c.ContentType() == gin.MIMEJSON {
		req, err = h.shortenFromJSON(c)
	} else {
		req, cleanup, err = h.shortenFromForm(c)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		if errors.Is(err, service.ErrInvalidMaxClicks) || errors.Is(err, service.ErrInvalidExpiry) {
			respondError(c, h.logger, err)
			return
		}
		h.logger.Warn("Invalid shorten request", zap.Error(err))
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		req.UserID = &user.ID
	}

	res, err := h.links.Shorten(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *LinkHandler) shortenFromJSON(c *gin.Context) (service.ShortenRequest, error) {
	var body ShortenJSONRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return service.ShortenRequest{}, err
	}

	req := service.ShortenRequest{
		URL:           body.URL,
		CustomAlias:   body.CustomAlias,
		Password:      body.Password,
		Description:   body.Description,
		MaxClicks:     body.MaxClicks,
		OGTitle:       body.OGTitle,
		OGDescription: body.OGDescription,
	}
	if body.ExpirationDate != nil && *body.ExpirationDate != "" {
		t, err := parseExpiration(*body.ExpirationDate)
		if err != nil {
			return req, err
		}
		req.ExpirationDate = &t
	}
	return req, nil
}

func (h *LinkHandler) shortenFromForm(c *gin.Context) (service.ShortenRequest, func(), error) {
	req := service.ShortenRequest{
		URL:           c.PostForm("url"),
		CustomAlias:   c.PostForm("customAlias"),
		Password:      c.PostForm("password"),
		Description:   c.PostForm("description"),
		OGTitle:       c.PostForm("ogTitle"),
		OGDescription: c.PostForm("ogDescription"),
	}

	if raw := strings.TrimSpace(c.PostForm("maxClicks")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, nil, service.ErrInvalidMaxClicks
		}
		req.MaxClicks = &n
	}
	if raw := strings.TrimSpace(c.PostForm("expirationDate")); raw != "" {
		t, err := parseExpiration(raw)
		if err != nil {
			return req, nil, err
		}
		req.ExpirationDate = &t
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, field := range []string{"file", "ogImageFile"} {
		header, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return req, cleanup, err
		}
		f, err := header.Open()
		if err != nil {
			return req, cleanup, err
		}
		opened = append(opened, f)

		upload := &filestore.Upload{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Body:        f,
		}
		if field == "file" {
			req.File = upload
		} else {
			req.OGImage = upload
		}
	}

	return req, cleanup, nil
}

func parseExpiration(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(datetimeLocalLayout, raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, service.ErrInvalidExpiry
}

func (h *LinkHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	links, err := h.links.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (h *LinkHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.links.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *LinkHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body UpdateLinkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}
	update, err := body.toUpdate()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	link, err := h.links.Update(c.Request.Context(), middleware.CurrentUser(c), id, update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (r UpdateLinkRequest) toUpdate() (service.LinkUpdate, error) {
	update := service.LinkUpdate{
		Description:   r.Description,
		OGTitle:       r.OGTitle,
		OGDescription: r.OGDescription,
		OGImage:       r.OGImage,
		Password:      r.Password,
	}

	switch {
	case len(r.ExpirationDate) == 0:
	case bytes.Equal(r.ExpirationDate, jsonNull):
		update.ClearExpiration = true
	default:
		var raw string
		if err := json.Unmarshal(r.ExpirationDate, &raw); err != nil {
			return update, service.ErrInvalidExpiry
		}
		if raw == "" {
			update.ClearExpiration = true
			break
		}
		t, err := parseExpiration(raw)
		if err != nil {
			return update, err
		}
		update.ExpirationDate = &t
	}

	switch {
	case len(r.MaxClicks) == 0:
	case bytes.Equal(r.MaxClicks, jsonNull):
		update.ClearMaxClicks = true
	default:
		var n int
		if err := json.Unmarshal(r.MaxClicks, &n); err != nil {
			return update, service.ErrInvalidMaxClicks
		}
		update.MaxClicks = &n
	}

	return update, nil
}

func (h *LinkHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.links.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

func (h *LinkHandler) Public(c *gin.Context) {
	links, err := h.links.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (h *LinkHandler) Preview(c *gin.Context) {
	preview, err := h.links.Preview(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (h *LinkHandler) QRCode(c *gin.Context) {
	png, err := h.links.QRCode(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *LinkHandler) AdminList(c *gin.Context) {
	links, err := h.links.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "INVALID_ID", "Invalid identifier", nil)
		return uuid.Nil, false
	}
	return id, true
}
