package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
)

type Outcome string

const (
	OutcomeNotFound         Outcome = "NOT_FOUND"
	OutcomePreview          Outcome = "PREVIEW"
	OutcomeExpired          Outcome = "EXPIRED"
	OutcomeLimitReached     Outcome = "LIMIT_REACHED"
	OutcomePasswordRequired Outcome = "PASSWORD_REQUIRED"
	OutcomeAllow            Outcome = "ALLOW"
)

const (
	defaultPreviewTitle       = "Shortened link"
	defaultPreviewDescription = "Redirects to the original link"

	recordTimeout = 10 * time.Second
)

// ResolveRequest identifies a link by short code or, for /download paths,
// by the stored filename of its file.
type ResolveRequest struct {
	ShortCode string
	Filename  string
	Password  string
	Preview   bool
	Visitor   Visitor
}

// PasswordPrompt is what a client needs to ask for a link password. It never
// carries the stored hash, and file links expose only the original file name.
type PasswordPrompt struct {
	ShortCode   string  `json:"shortCode"`
	Description *string `json:"description,omitempty"`
	OriginalURL string  `json:"originalUrl,omitempty"`
	FileName    string  `json:"fileName,omitempty"`
}

type LinkPreview struct {
	ShortCode      string     `json:"shortCode"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Image          *string    `json:"image,omitempty"`
	Clicks         int        `json:"clicks"`
	HasPassword    bool       `json:"hasPassword"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type Resolution struct {
	Outcome     Outcome
	Destination string
	Prompt      *PasswordPrompt
	Preview     *LinkPreview
}

// ResolverStore is the slice of link persistence the gate needs.
type ResolverStore interface {
	FindByShortCode(ctx context.Context, code string) (*model.Link, error)
	FindByFilename(ctx context.Context, filename string) (*model.Link, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	ReserveClick(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Resolver applies the ordered link policy checks for a short code.
type Resolver struct {
	links    ResolverStore
	recorder ClickRecorder
	now      func() time.Time
	spawn    func(func())
	logger   *zap.Logger
}

func NewResolver(links ResolverStore, recorder ClickRecorder) *Resolver {
	return &Resolver{
		links:    links,
		recorder: recorder,
		now:      time.Now,
		spawn:    func(f func()) { go f() },
		logger:   zap.L().With(zap.String("component", "Resolver")),
	}
}

// Resolve returns an error only for store failures; every policy result is
// an Outcome.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	res, err := r.resolve(ctx, req)
	if err != nil {
		metrics.LinkResolutionTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LinkResolutionTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	link, err := r.lookup(ctx, req)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return &Resolution{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	if req.Preview {
		return &Resolution{Outcome: OutcomePreview, Preview: BuildPreview(link)}, nil
	}

	if !link.IsActive {
		return &Resolution{Outcome: OutcomeExpired}, nil
	}

	now := r.now()
	if link.Expired(now) {
		if err := r.deactivate(ctx, link, "expired"); err != nil {
			return nil, err
		}
		return &Resolution{Outcome: OutcomeExpired}, nil
	}

	if link.LimitReached() {
		if err := r.deactivate(ctx, link, "limit_reached"); err != nil {
			return nil, err
		}
		return &Resolution{Outcome: OutcomeLimitReached}, nil
	}

	if link.HasPassword() && !passwordMatches(*link.PasswordHash, req.Password) {
		return &Resolution{Outcome: OutcomePasswordRequired, Prompt: passwordPrompt(link)}, nil
	}

	reserved, err := r.links.ReserveClick(ctx, link.ID, now)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return r.lostReservation(ctx, link.ShortCode)
	}

	linkID := link.ID
	visitor := req.Visitor
	recordCtx := context.WithoutCancel(ctx)
	r.spawn(func() {
		ctx, cancel := context.WithTimeout(recordCtx, recordTimeout)
		defer cancel()
		r.recorder.Record(ctx, linkID, visitor)
	})

	return &Resolution{Outcome: OutcomeAllow, Destination: destination(link)}, nil
}

func (r *Resolver) lookup(ctx context.Context, req ResolveRequest) (*model.Link, error) {
	if req.Filename != "" {
		return r.links.FindByFilename(ctx, req.Filename)
	}
	return r.links.FindByShortCode(ctx, req.ShortCode)
}

// destination sends file links straight to storage; the internal
// /download path is only reachable through this same gate.
func destination(link *model.Link) string {
	if link.File != nil && link.File.URL != "" {
		return link.File.URL
	}
	return link.OriginalURL
}

func passwordPrompt(link *model.Link) *PasswordPrompt {
	prompt := &PasswordPrompt{ShortCode: link.ShortCode, Description: link.Description}
	if link.File != nil {
		prompt.FileName = link.File.OriginalName
	} else {
		prompt.OriginalURL = link.OriginalURL
	}
	return prompt
}

// lostReservation handles a concurrent request taking the last click slot or
// deactivating the link between the read and the reservation.
func (r *Resolver) lostReservation(ctx context.Context, code string) (*Resolution, error) {
	link, err := r.links.FindByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return &Resolution{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	if link.LimitReached() {
		if err := r.deactivate(ctx, link, "limit_reached"); err != nil {
			return nil, err
		}
		return &Resolution{Outcome: OutcomeLimitReached}, nil
	}
	if link.IsActive && link.Expired(r.now()) {
		if err := r.deactivate(ctx, link, "expired"); err != nil {
			return nil, err
		}
	}
	return &Resolution{Outcome: OutcomeExpired}, nil
}

func (r *Resolver) deactivate(ctx context.Context, link *model.Link, reason string) error {
	changed, err := r.links.Deactivate(ctx, link.ID)
	if err != nil {
		return err
	}
	link.IsActive = false
	if changed {
		metrics.LinkDeactivationTotal.WithLabelValues(reason).Inc()
		r.logger.Info("Link deactivated", zap.String("short_code", link.ShortCode), zap.String("reason", reason))
	}
	return nil
}

// BuildPreview exposes the public metadata of a link.
func BuildPreview(link *model.Link) *LinkPreview {
	title := defaultPreviewTitle
	switch {
	case nonEmpty(link.OGTitle):
		title = *link.OGTitle
	case nonEmpty(link.Description):
		title = *link.Description
	}

	description := defaultPreviewDescription
	if nonEmpty(link.OGDescription) {
		description = *link.OGDescription
	}

	return &LinkPreview{
		ShortCode:      link.ShortCode,
		Title:          title,
		Description:    description,
		Image:          link.OGImage,
		Clicks:         link.ClickCount,
		HasPassword:    link.HasPassword(),
		ExpirationDate: link.ExpiresAt,
		CreatedAt:      link.CreatedAt,
	}
}

func passwordMatches(hash, supplied string) bool {
	if supplied == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(supplied)) == nil
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
