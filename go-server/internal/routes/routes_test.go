package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/config"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, req service.ResolveRequest) (*service.Resolution, error) {
	if req.ShortCode == "abc123" {
		return &service.Resolution{Outcome: service.OutcomeAllow, Destination: "https://example.com"}, nil
	}
	return &service.Resolution{Outcome: service.OutcomeNotFound}, nil
}

// stubAuth only implements session lookup; other methods are never reached.
type stubAuth struct {
	service.AuthService
	sessions map[string]*model.User
}

func (s stubAuth) Authenticate(_ context.Context, signed string) (*model.Session, error) {
	user, ok := s.sessions[signed]
	if !ok {
		return nil, service.ErrUnauthenticated
	}
	return &model.Session{UserID: user.ID, User: user}, nil
}

type stubStats struct {
	service.StatsService
}

func (stubStats) AdminStats(context.Context) (*service.AdminStats, error) {
	return &service.AdminStats{TotalUsers: 1}, nil
}

func setupRouter(t *testing.T) *gin.Engine {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
	}
	svc := Services{
		Resolver: stubResolver{},
		Auth: stubAuth{sessions: map[string]*model.User{
			"user-token":  {ID: uuid.New(), Role: model.RoleUser, IsActive: true},
			"admin-token": {ID: uuid.New(), Role: model.RoleAdmin, IsActive: true},
		}},
		Stats: stubStats{},
	}
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	return SetupRouter(ctx, cfg, svc, metricsHandler)
}

func TestRouter(t *testing.T) {
	router := setupRouter(t)

	testCases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"redirect", http.MethodGet, "/abc123", "", http.StatusFound},
		{"unknown code", http.MethodGet, "/missing", "", http.StatusNotFound},
		{"own links need a session", http.MethodGet, "/api/links", "", http.StatusUnauthorized},
		{"stale session is anonymous", http.MethodGet, "/api/stats/dashboard", "expired", http.StatusUnauthorized},
		{"admin stats need auth", http.MethodGet, "/api/admin/stats", "", http.StatusUnauthorized},
		{"admin stats reject users", http.MethodGet, "/api/admin/stats", "user-token", http.StatusForbidden},
		{"admin stats", http.MethodGet, "/api/admin/stats", "admin-token", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tc.token})
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}
