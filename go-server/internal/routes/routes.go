package route

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/config"
	"github.com/fonsecaaso/linkdrop/go-server/internal/handler"
	"github.com/fonsecaaso/linkdrop/go-server/internal/middleware"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

// Services are the application services the router exposes.
type Services struct {
	Resolver handler.LinkResolver
	Links    service.LinkService
	Stats    service.StatsService
	Auth     service.AuthService
	Admin    service.AdminService
}

// SetupRouter wires every HTTP route. ctx bounds the rate limiter cleanup
// goroutines.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, metricsHandler http.Handler) *gin.Engine {
	logger := zap.L().With(zap.String("component", "Router"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zap.L()))
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(middleware.LoadSession(svc.Auth))

	shortenLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRequests, cfg.RateLimitWindow)
	authLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRequests, cfg.RateLimitWindow)

	redirects := handler.NewRedirectHandler(svc.Resolver)
	links := handler.NewLinkHandler(svc.Links)
	stats := handler.NewStatsHandler(svc.Stats)
	auth := handler.NewAuthHandler(svc.Auth, cfg.CookieSecure)
	admin := handler.NewAdminHandler(svc.Admin)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsHandler))

	r.GET("/:shortCode", redirects.Redirect)
	r.GET("/download/:filename", redirects.Download)

	api := r.Group("/api")
	api.POST("/shorten", shortenLimiter.Middleware(), links.Shorten)
	api.GET("/preview/:shortCode", links.Preview)
	api.GET("/qr/:shortCode", links.QRCode)
	api.GET("/links/public", links.Public)

	authGroup := api.Group("/auth")
	authGroup.GET("/check-signup", auth.CheckSignup)
	authGroup.POST("/signup", authLimiter.Middleware(), auth.Signup)
	authGroup.POST("/signin", authLimiter.Middleware(), auth.Signin)
	authGroup.POST("/signout", auth.Signout)
	authGroup.GET("/verify", auth.Verify)
	authGroup.GET("/me", middleware.RequireAuth(), auth.Me)

	user := api.Group("", middleware.RequireAuth())
	user.GET("/links", links.List)
	user.GET("/links/:id", links.Get)
	user.PATCH("/links/:id", links.Update)
	user.DELETE("/links/:id", links.Delete)
	user.GET("/links/:id/stats", stats.LinkStats)
	user.GET("/stats/dashboard", stats.Dashboard)
	user.GET("/stats/global", stats.Global)
	user.GET("/user/stats", stats.UserStats)
	user.PATCH("/user/profile", auth.UpdateProfile)
	user.PATCH("/user/password", auth.ChangePassword)

	adminGroup := api.Group("/admin", middleware.RequireAuth(), middleware.RequireAdmin())
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.POST("/users", admin.CreateUser)
	adminGroup.PATCH("/users/:id", admin.UpdateUser)
	adminGroup.DELETE("/users/:id", admin.DeleteUser)
	adminGroup.GET("/stats", stats.AdminStats)
	adminGroup.GET("/links", links.AdminList)
	adminGroup.DELETE("/links/:id", links.Delete)

	return r
}
