package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/analytics"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
)

const (
	topLinksLimit     = 10
	topCountriesLimit = 10
)

type LinkStats struct {
	Link *model.Link `json:"link"`
	analytics.Summary
}

type Dashboard struct {
	TotalLinks  int `json:"totalLinks"`
	ActiveLinks int `json:"activeLinks"`
	TotalClicks int `json:"totalClicks"`
	ClicksToday int `json:"clicksToday"`
}

type GlobalStats struct {
	TotalClicks  int                     `json:"totalClicks"`
	ClicksToday  int                     `json:"clicksToday"`
	ClicksByDate []analytics.DailyClicks `json:"clicksByDate"`
	TopLinks     []analytics.TopLink     `json:"topLinks"`
	Devices      []analytics.Share       `json:"deviceStats"`
	Countries    []analytics.Share       `json:"countryStats"`
	Browsers     []analytics.Share       `json:"browserStats"`
	OS           []analytics.Share       `json:"osStats"`
	Referrers    []analytics.Share       `json:"referrerStats"`
}

type UserStats struct {
	TotalLinks  int       `json:"totalLinks"`
	ActiveLinks int       `json:"activeLinks"`
	TotalClicks int       `json:"totalClicks"`
	JoinDate    time.Time `json:"joinDate"`
}

type AdminStats struct {
	TotalUsers  int `json:"totalUsers"`
	ActiveUsers int `json:"activeUsers"`
	TotalLinks  int `json:"totalLinks"`
	TotalClicks int `json:"totalClicks"`
	LinksToday  int `json:"linksToday"`
	ClicksToday int `json:"clicksToday"`
}

type StatsService interface {
	LinkStats(ctx context.Context, actor *model.User, linkID uuid.UUID, days int) (*LinkStats, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error)
	Global(ctx context.Context, userID uuid.UUID, days int) (*GlobalStats, error)
	UserStats(ctx context.Context, user *model.User) (*UserStats, error)
	AdminStats(ctx context.Context) (*AdminStats, error)
}

type statsService struct {
	links  repository.LinkRepository
	clicks repository.ClickRepository
	users  repository.UserRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewStatsService(links repository.LinkRepository, clicks repository.ClickRepository, users repository.UserRepository) StatsService {
	return &statsService{
		links:  links,
		clicks: clicks,
		users:  users,
		now:    time.Now,
		logger: zap.L().With(zap.String("component", "StatsService")),
	}
}

// ValidDays accepts the two supported series windows.
func ValidDays(days int) bool {
	return days == 7 || days == 30
}

func (s *statsService) LinkStats(ctx context.Context, actor *model.User, linkID uuid.UUID, days int) (*LinkStats, error) {
	if !ValidDays(days) {
		return nil, ErrInvalidDays
	}
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	link, err := s.links.FindByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !link.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}

	clicks, err := s.clicks.ListByLink(ctx, link.ID, 0)
	if err != nil {
		return nil, err
	}

	summary := analytics.Summarize(clicks, s.now(), analytics.Options{Days: days})
	return &LinkStats{Link: link, Summary: summary}, nil
}

func (s *statsService) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	total, active, err := s.links.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	clicks, err := s.clicks.CountByUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	midnight := analytics.StartOfDay(s.now())
	today, err := s.clicks.CountByUser(ctx, userID, &midnight)
	if err != nil {
		return nil, err
	}

	return &Dashboard{TotalLinks: total, ActiveLinks: active, TotalClicks: clicks, ClicksToday: today}, nil
}

func (s *statsService) Global(ctx context.Context, userID uuid.UUID, days int) (*GlobalStats, error) {
	if !ValidDays(days) {
		return nil, ErrInvalidDays
	}

	clicks, err := s.clicks.ListByUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	totals, err := s.clicks.LinkTotalsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := analytics.Summarize(clicks, s.now(), analytics.Options{Days: days, TopCountries: topCountriesLimit})
	s.logger.Debug("Global stats computed", zap.String("user_id", userID.String()), zap.Int("clicks", summary.TotalClicks))

	return &GlobalStats{
		TotalClicks:  summary.TotalClicks,
		ClicksToday:  summary.ClicksToday,
		ClicksByDate: summary.ClicksByDate,
		TopLinks:     analytics.RankLinks(totals, topLinksLimit),
		Devices:      summary.Devices,
		Countries:    summary.Countries,
		Browsers:     summary.Browsers,
		OS:           summary.OS,
		Referrers:    summary.Referrers,
	}, nil
}

func (s *statsService) UserStats(ctx context.Context, user *model.User) (*UserStats, error) {
	total, active, err := s.links.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	clicks, err := s.clicks.CountByUser(ctx, user.ID, nil)
	if err != nil {
		return nil, err
	}

	return &UserStats{TotalLinks: total, ActiveLinks: active, TotalClicks: clicks, JoinDate: user.CreatedAt}, nil
}

func (s *statsService) AdminStats(ctx context.Context) (*AdminStats, error) {
	midnight := analytics.StartOfDay(s.now())

	var stats AdminStats
	var err error
	if stats.TotalUsers, stats.ActiveUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalLinks, err = s.links.Count(ctx, nil); err != nil {
		return nil, err
	}
	if stats.LinksToday, err = s.links.Count(ctx, &midnight); err != nil {
		return nil, err
	}
	if stats.TotalClicks, err = s.clicks.Count(ctx, nil); err != nil {
		return nil, err
	}
	if stats.ClicksToday, err = s.clicks.Count(ctx, &midnight); err != nil {
		return nil, err
	}

	return &stats, nil
}
