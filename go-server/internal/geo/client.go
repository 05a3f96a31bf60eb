// Package geo resolves visitor IP addresses to a country and city through an
// ip-api.com compatible HTTP endpoint, with an optional Redis cache.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
)

const cacheTTL = 24 * time.Hour

// Location is empty when the lookup failed or was skipped.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type Locator interface {
	Locate(ctx context.Context, ip string) Location
}

type apiResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	City    string `json:"city"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cache      *redis.Client
	logger     *zap.Logger
}

// NewClient builds a Client. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, cache *redis.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		cache:      cache,
		logger:     zap.L().With(zap.String("component", "GeoClient")),
	}
}

// Locate never fails: any error yields an empty Location.
func (c *Client) Locate(ctx context.Context, ip string) Location {
	if !routable(ip) {
		return Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if loc, ok := c.cached(ctx, ip); ok {
		metrics.GeoLookupTotal.WithLabelValues("cache").Inc()
		return loc
	}

	loc, err := c.fetch(ctx, ip)
	if err != nil {
		metrics.GeoLookupTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return Location{}
	}
	metrics.GeoLookupTotal.WithLabelValues("api").Inc()

	c.store(ctx, ip, loc)
	return loc
}

func (c *Client) fetch(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+ip, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("lookup status %q: %s", body.Status, body.Message)
	}

	return Location{Country: body.Country, City: body.City}, nil
}

func (c *Client) cached(ctx context.Context, ip string) (Location, bool) {
	if c.cache == nil {
		return Location{}, false
	}

	raw, err := c.cache.Get(ctx, cacheKey(ip)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Cache error", zap.Error(err), zap.String("ip", ip))
		}
		return Location{}, false
	}

	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

func (c *Client) store(ctx context.Context, ip string, loc Location) {
	if c.cache == nil {
		return
	}

	raw, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(ip), raw, cacheTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache location", zap.Error(err), zap.String("ip", ip))
	}
}

func cacheKey(ip string) string {
	return "geo:" + ip
}

// routable reports whether ip is a public address worth looking up.
func routable(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsMulticast())
}
