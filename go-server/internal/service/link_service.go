package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fonsecaaso/linkdrop/go-server/internal/filestore"
	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
)

const (
	recentClicksLimit = 100
	listingLimit      = 100

	qrCodeSize = 256

	anonymousOwner = "Anonymous"
	deletedOwner   = "Deleted user"

	passwordCost = 12
)

type ShortenRequest struct {
	URL            string
	File           *filestore.Upload
	CustomAlias    string
	Password       string
	Description    string
	ExpirationDate *time.Time
	MaxClicks      *int
	OGTitle        string
	OGDescription  string
	OGImage        *filestore.Upload
	UserID         *uuid.UUID
}

type ShortenResult struct {
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	Clicks      int       `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LinkUpdate carries the editable fields of a link. Nil pointers keep the
// current value; an empty Password removes the password.
type LinkUpdate struct {
	Description     *string
	OGTitle         *string
	OGDescription   *string
	OGImage         *string
	Password        *string
	ExpirationDate  *time.Time
	ClearExpiration bool
	MaxClicks       *int
	ClearMaxClicks  bool
}

type LinkDetail struct {
	*model.Link
	HasPassword  bool          `json:"hasPassword"`
	RecentClicks []model.Click `json:"recentClicks"`
}

type PublicLink struct {
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	Description *string   `json:"description,omitempty"`
	Clicks      int       `json:"clicks"`
	IsFile      bool      `json:"isFile"`
	UserName    string    `json:"userName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AdminLink struct {
	model.Link
	HasPassword bool   `json:"hasPassword"`
	OwnerName   string `json:"ownerName"`
	OwnerEmail  string `json:"ownerEmail,omitempty"`
}

type LinkService interface {
	Shorten(ctx context.Context, req ShortenRequest) (*ShortenResult, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Link, error)
	Get(ctx context.Context, actor *model.User, id uuid.UUID) (*LinkDetail, error)
	Update(ctx context.Context, actor *model.User, id uuid.UUID, update LinkUpdate) (*model.Link, error)
	Delete(ctx context.Context, actor *model.User, id uuid.UUID) error
	ListPublic(ctx context.Context) ([]PublicLink, error)
	ListAll(ctx context.Context) ([]AdminLink, error)
	Preview(ctx context.Context, code string) (*LinkPreview, error)
	QRCode(ctx context.Context, code string) ([]byte, error)
}

type linkService struct {
	links     repository.LinkRepository
	clicks    repository.ClickRepository
	files     filestore.Store
	generator *CodeGenerator
	baseURL   string
	now       func() time.Time
	logger    *zap.Logger
}

func NewLinkService(links repository.LinkRepository, clicks repository.ClickRepository, files filestore.Store, baseURL string) LinkService {
	return &linkService{
		links:     links,
		clicks:    clicks,
		files:     files,
		generator: NewCodeGenerator(links),
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
		logger:    zap.L().With(zap.String("component", "LinkService")),
	}
}

func (s *linkService) Shorten(ctx context.Context, req ShortenRequest) (*ShortenResult, error) {
	kind := "url"
	if req.File != nil {
		kind = "file"
	}

	res, err := s.shorten(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LinkCreationTotal.WithLabelValues(kind, status).Inc()
	return res, err
}

func (s *linkService) shorten(ctx context.Context, req ShortenRequest) (*ShortenResult, error) {
	logger := s.logger.With(zap.String("operation", "Shorten"))

	destination := ""
	if req.File == nil {
		if req.URL == "" {
			return nil, ErrMissingTarget
		}
		normalized, ok := normalizeURL(req.URL)
		if !ok {
			logger.Warn("Invalid URL provided", zap.String("url", req.URL))
			return nil, ErrInvalidURL
		}
		destination = normalized
	}
	if req.MaxClicks != nil && *req.MaxClicks < 1 {
		return nil, ErrInvalidMaxClicks
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(s.now()) {
		return nil, ErrInvalidExpiry
	}

	code, err := s.generator.Assign(ctx, req.CustomAlias)
	if err != nil {
		if !errors.Is(err, ErrInvalidAlias) && !errors.Is(err, ErrAliasTaken) {
			logger.Error("Failed to assign short code", zap.Error(err))
		}
		return nil, err
	}

	link := &model.Link{
		ID:            uuid.New(),
		ShortCode:     code,
		OriginalURL:   destination,
		Description:   optional(strings.TrimSpace(req.Description)),
		ExpiresAt:     req.ExpirationDate,
		MaxClicks:     req.MaxClicks,
		OGTitle:       optional(strings.TrimSpace(req.OGTitle)),
		OGDescription: optional(strings.TrimSpace(req.OGDescription)),
		UserID:        req.UserID,
	}
	if alias := strings.TrimSpace(req.CustomAlias); alias != "" {
		link.CustomAlias = &alias
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordCost)
		if err != nil {
			logger.Error("Failed to hash link password", zap.Error(err))
			return nil, err
		}
		h := string(hash)
		link.PasswordHash = &h
	}

	// Uploaded bytes are removed again if the link cannot be stored.
	var uploaded []string
	cleanup := func() {
		for _, u := range uploaded {
			s.deleteStored(context.WithoutCancel(ctx), u)
		}
	}

	if req.File != nil {
		stored, err := s.files.Upload(ctx, *req.File)
		if err != nil {
			logger.Error("Failed to upload file", zap.Error(err), zap.String("name", req.File.Name))
			return nil, ErrFileUpload
		}
		uploaded = append(uploaded, stored.URL)
		link.OriginalURL = "/download/" + stored.Filename
		link.File = &model.File{
			ID:           uuid.New(),
			Filename:     stored.Filename,
			OriginalName: stored.OriginalName,
			Size:         stored.Size,
			MimeType:     stored.MimeType,
			URL:          stored.URL,
		}
	}

	if req.OGImage != nil {
		stored, err := s.files.Upload(ctx, *req.OGImage)
		if err != nil {
			logger.Error("Failed to upload preview image", zap.Error(err))
			cleanup()
			return nil, ErrFileUpload
		}
		uploaded = append(uploaded, stored.URL)
		link.OGImage = &stored.URL
	}

	if err := s.links.Create(ctx, link); err != nil {
		cleanup()
		if errors.Is(err, repository.ErrShortCodeTaken) {
			if link.CustomAlias != nil {
				return nil, ErrAliasTaken
			}
			return nil, ErrIDGenerationMax
		}
		logger.Error("Failed to store link", zap.Error(err))
		return nil, err
	}

	original := link.OriginalURL
	if link.File != nil {
		original = "File: " + link.File.OriginalName
	}

	logger.Info("Link created", zap.String("short_code", code), zap.Bool("file", link.File != nil))
	return &ShortenResult{
		ShortURL:    s.shortURL(code),
		OriginalURL: original,
		ShortCode:   code,
		Clicks:      0,
		CreatedAt:   link.CreatedAt,
	}, nil
}

func (s *linkService) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Link, error) {
	return s.links.ListByUser(ctx, userID)
}

// owned loads a link the actor may manage: its owner or any admin.
func (s *linkService) owned(ctx context.Context, actor *model.User, id uuid.UUID) (*model.Link, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	link, err := s.links.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !link.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}
	return link, nil
}

func (s *linkService) Get(ctx context.Context, actor *model.User, id uuid.UUID) (*LinkDetail, error) {
	link, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	clicks, err := s.clicks.ListByLink(ctx, link.ID, recentClicksLimit)
	if err != nil {
		return nil, err
	}
	if clicks == nil {
		clicks = []model.Click{}
	}

	return &LinkDetail{Link: link, HasPassword: link.HasPassword(), RecentClicks: clicks}, nil
}

func (s *linkService) Update(ctx context.Context, actor *model.User, id uuid.UUID, update LinkUpdate) (*model.Link, error) {
	link, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		link.Description = optional(strings.TrimSpace(*update.Description))
	}
	if update.OGTitle != nil {
		link.OGTitle = optional(strings.TrimSpace(*update.OGTitle))
	}
	if update.OGDescription != nil {
		link.OGDescription = optional(strings.TrimSpace(*update.OGDescription))
	}
	if update.OGImage != nil {
		link.OGImage = optional(strings.TrimSpace(*update.OGImage))
	}

	if update.Password != nil {
		if *update.Password == "" {
			link.PasswordHash = nil
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), passwordCost)
			if err != nil {
				return nil, err
			}
			h := string(hash)
			link.PasswordHash = &h
		}
	}

	switch {
	case update.ClearExpiration:
		link.ExpiresAt = nil
	case update.ExpirationDate != nil:
		if !update.ExpirationDate.After(s.now()) {
			return nil, ErrInvalidExpiry
		}
		link.ExpiresAt = update.ExpirationDate
	}

	switch {
	case update.ClearMaxClicks:
		link.MaxClicks = nil
	case update.MaxClicks != nil:
		if *update.MaxClicks < 1 {
			return nil, ErrInvalidMaxClicks
		}
		link.MaxClicks = update.MaxClicks
	}

	if err := s.links.Update(ctx, link); err != nil {
		return nil, err
	}

	s.logger.Info("Link updated", zap.String("short_code", link.ShortCode), zap.String("actor", actor.ID.String()))
	return link, nil
}

func (s *linkService) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	link, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.links.Delete(ctx, link.ID); err != nil {
		return err
	}

	if link.File != nil {
		s.deleteStored(ctx, link.File.URL)
	}
	if link.OGImage != nil {
		s.deleteStored(ctx, *link.OGImage)
	}

	s.logger.Info("Link deleted", zap.String("short_code", link.ShortCode), zap.String("actor", actor.ID.String()))
	return nil
}

// deleteStored removes bytes from the file server. Failures are only logged.
func (s *linkService) deleteStored(ctx context.Context, url string) {
	if err := s.files.Delete(ctx, url); err != nil {
		s.logger.Warn("Failed to delete stored file", zap.Error(err), zap.String("url", url))
	}
}

func (s *linkService) ListPublic(ctx context.Context) ([]PublicLink, error) {
	rows, err := s.links.ListPublic(ctx, listingLimit)
	if err != nil {
		return nil, err
	}

	out := make([]PublicLink, 0, len(rows))
	for _, l := range rows {
		owner := anonymousOwner
		switch {
		case nonEmpty(l.OwnerName):
			owner = *l.OwnerName
		case nonEmpty(l.OwnerEmail):
			owner = *l.OwnerEmail
		}
		out = append(out, PublicLink{
			ShortCode:   l.ShortCode,
			ShortURL:    s.shortURL(l.ShortCode),
			Description: l.Description,
			Clicks:      l.ClickCount,
			IsFile:      strings.HasPrefix(l.OriginalURL, "/download/"),
			UserName:    owner,
			CreatedAt:   l.CreatedAt,
		})
	}
	return out, nil
}

func (s *linkService) ListAll(ctx context.Context) ([]AdminLink, error) {
	rows, err := s.links.ListAll(ctx, listingLimit)
	if err != nil {
		return nil, err
	}

	out := make([]AdminLink, 0, len(rows))
	for _, l := range rows {
		item := AdminLink{Link: l.Link, HasPassword: l.HasPassword()}
		switch {
		case l.UserID == nil:
			item.OwnerName = anonymousOwner
		case nonEmpty(l.OwnerName):
			item.OwnerName = *l.OwnerName
		case nonEmpty(l.OwnerEmail):
			item.OwnerName = *l.OwnerEmail
		default:
			item.OwnerName = deletedOwner
		}
		if l.OwnerEmail != nil {
			item.OwnerEmail = *l.OwnerEmail
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *linkService) Preview(ctx context.Context, code string) (*LinkPreview, error) {
	link, err := s.links.FindByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return BuildPreview(link), nil
}

// QRCode renders the absolute short URL of an existing link as a PNG.
func (s *linkService) QRCode(ctx context.Context, code string) ([]byte, error) {
	exists, err := s.links.ShortCodeExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return qrcode.Encode(s.shortURL(code), qrcode.Medium, qrCodeSize)
}

func (s *linkService) shortURL(code string) string {
	return s.baseURL + "/" + code
}

// normalizeURL adds https:// to scheme-less input and requires a host.
func normalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	return raw, true
}
