package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ErrMissingDatabase = errors.New("either POSTGRES_URL or POSTGRES_HOST, POSTGRES_USER, and POSTGRES_DB must be set")

// Config holds the application settings
type Config struct {
	Port        string
	BaseURL     string
	Environment string
	ServiceName string

	PostgresURL      string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	RunMigrations    bool

	RedisAddr     string
	RedisPassword string

	FileServerURL    string
	FileServerAPIKey string

	GeoIPURL     string
	GeoIPTimeout time.Duration

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	CORSOrigins    []string
	TrustedProxies []string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	SeedAdminEmail    string
	SeedAdminPassword string

	LokiURL      string
	OTLPEndpoint string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVICE_NAME", "linkdrop")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_SSLMODE", "prefer")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("GEOIP_URL", "http://ip-api.com")
	v.SetDefault("GEOIP_TIMEOUT", 2*time.Second)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
}

// LoadConfig reads .env (when present) and the environment into a Config
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using system environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		BaseURL:           strings.TrimRight(v.GetString("BASE_URL"), "/"),
		Environment:       v.GetString("ENV"),
		ServiceName:       v.GetString("SERVICE_NAME"),
		PostgresURL:       v.GetString("POSTGRES_URL"),
		PostgresHost:      v.GetString("POSTGRES_HOST"),
		PostgresPort:      v.GetInt("POSTGRES_PORT"),
		PostgresDB:        v.GetString("POSTGRES_DB"),
		PostgresUser:      v.GetString("POSTGRES_USER"),
		PostgresPassword:  v.GetString("POSTGRES_PASSWORD"),
		PostgresSSLMode:   v.GetString("POSTGRES_SSLMODE"),
		RunMigrations:     v.GetBool("RUN_MIGRATIONS"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		FileServerURL:     strings.TrimRight(v.GetString("FILE_SERVER_URL"), "/"),
		FileServerAPIKey:  v.GetString("FILE_SERVER_API_KEY"),
		GeoIPURL:          strings.TrimRight(v.GetString("GEOIP_URL"), "/"),
		GeoIPTimeout:      v.GetDuration("GEOIP_TIMEOUT"),
		SessionSecret:     v.GetString("SESSION_SECRET"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		TrustedProxies:    splitList(v.GetString("TRUSTED_PROXIES")),
		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
		LokiURL:           v.GetString("LOKI_URL"),
		OTLPEndpoint:      v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.PostgresURL == "" {
		if cfg.PostgresHost == "" || cfg.PostgresUser == "" || cfg.PostgresDB == "" {
			return nil, ErrMissingDatabase
		}
		cfg.PostgresURL = buildPostgresURL(cfg)
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET not set")
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if cfg.GeoIPTimeout <= 0 {
		return nil, fmt.Errorf("invalid GEOIP_TIMEOUT: %s", cfg.GeoIPTimeout)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildPostgresURL escapes credentials so passwords may contain URL
// delimiters.
func buildPostgresURL(cfg *Config) string {
	user := url.User(cfg.PostgresUser)
	if cfg.PostgresPassword != "" {
		user = url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(cfg.PostgresHost, strconv.Itoa(cfg.PostgresPort)),
		Path:     "/" + cfg.PostgresDB,
		RawQuery: url.Values{"sslmode": {cfg.PostgresSSLMode}}.Encode(),
	}
	return u.String()
}
