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
)

func setupStatsService(t *testing.T) (*statsService, *MockLinkRepository, *MockClickRepository, *MockUserRepository) {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	links := new(MockLinkRepository)
	clicks := new(MockClickRepository)
	users := new(MockUserRepository)
	svc := NewStatsService(links, clicks, users).(*statsService)
	svc.now = func() time.Time { return testNow }
	return svc, links, clicks, users
}

func clickAt(t time.Time, device, country string) model.Click {
	return model.Click{ID: uuid.New(), CreatedAt: t, Device: strPtr(device), Country: strPtr(country)}
}

func TestLinkStats(t *testing.T) {
	svc, links, clicks, _ := setupStatsService(t)
	ctx := context.Background()
	owner := testUser(model.RoleUser)
	link := newLink("stats")
	link.UserID = &owner.ID

	links.On("FindByID", ctx, link.ID).Return(link, nil)
	clicks.On("ListByLink", ctx, link.ID, 0).Return([]model.Click{
		clickAt(testNow.Add(-time.Hour), "Mobile", "France"),
		clickAt(testNow.Add(-26*time.Hour), "Desktop", "France"),
		clickAt(testNow.Add(-10*24*time.Hour), "Mobile", "Brazil"),
	}, nil)

	stats, err := svc.LinkStats(ctx, owner, link.ID, 7)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalClicks)
	assert.Equal(t, 1, stats.ClicksToday)
	assert.Len(t, stats.ClicksByDate, 7)
	assert.Equal(t, "Mobile", stats.Devices[0].Label)
	assert.Equal(t, 2, stats.Devices[0].Clicks)
	assert.Equal(t, "France", stats.Countries[0].Label)
}

func TestLinkStats_Rejected(t *testing.T) {
	svc, links, _, _ := setupStatsService(t)
	ctx := context.Background()
	link := newLink("private")
	link.UserID = new(uuid.UUID)
	*link.UserID = uuid.New()

	_, err := svc.LinkStats(ctx, testUser(model.RoleUser), link.ID, 14)
	assert.ErrorIs(t, err, ErrInvalidDays)

	links.On("FindByID", ctx, link.ID).Return(link, nil)
	_, err = svc.LinkStats(ctx, testUser(model.RoleUser), link.ID, 30)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDashboard(t *testing.T) {
	svc, links, clicks, _ := setupStatsService(t)
	ctx := context.Background()
	userID := uuid.New()
	midnight := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	links.On("CountByUser", ctx, userID).Return(4, 3, nil)
	clicks.On("CountByUser", ctx, userID, (*time.Time)(nil)).Return(42, nil)
	clicks.On("CountByUser", ctx, userID, &midnight).Return(5, nil)

	d, err := svc.Dashboard(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, &Dashboard{TotalLinks: 4, ActiveLinks: 3, TotalClicks: 42, ClicksToday: 5}, d)
}

func TestGlobal(t *testing.T) {
	svc, _, clicks, _ := setupStatsService(t)
	ctx := context.Background()
	userID := uuid.New()

	clicks.On("ListByUser", ctx, userID, (*time.Time)(nil)).Return([]model.Click{
		clickAt(testNow, "Desktop", "Spain"),
		clickAt(testNow, "Desktop", ""),
	}, nil)
	clicks.On("LinkTotalsByUser", ctx, userID).Return([]model.LinkClicks{
		{LinkID: uuid.New(), ShortCode: "a", Clicks: 1},
		{LinkID: uuid.New(), ShortCode: "b", Clicks: 1},
	}, nil)

	g, err := svc.Global(ctx, userID, 30)

	require.NoError(t, err)
	assert.Len(t, g.ClicksByDate, 30)
	assert.Equal(t, 2, g.ClicksByDate[29].Clicks)
	require.Len(t, g.TopLinks, 2)
	assert.Equal(t, "a", g.TopLinks[0].ShortCode)
	assert.Equal(t, 50.0, g.TopLinks[0].Percentage)
	assert.Equal(t, "Unknown", g.Countries[1].Label)

	_, err = svc.Global(ctx, userID, 0)
	assert.ErrorIs(t, err, ErrInvalidDays)
}

func TestAdminStats(t *testing.T) {
	svc, links, clicks, users := setupStatsService(t)
	ctx := context.Background()
	isToday := mock.MatchedBy(func(t *time.Time) bool { return t != nil })
	allTime := (*time.Time)(nil)

	users.On("Count", ctx).Return(10, 8, nil)
	links.On("Count", ctx, allTime).Return(100, nil)
	links.On("Count", ctx, isToday).Return(7, nil)
	clicks.On("Count", ctx, allTime).Return(900, nil)
	clicks.On("Count", ctx, isToday).Return(33, nil)

	stats, err := svc.AdminStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, &AdminStats{
		TotalUsers:  10,
		ActiveUsers: 8,
		TotalLinks:  100,
		TotalClicks: 900,
		LinksToday:  7,
		ClicksToday: 33,
	}, stats)
}
