package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/geo"
	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
)

// Visitor is the request context of a resolution.
type Visitor struct {
	IP        string
	UserAgent string
	Referer   string
}

// ClickRecorder appends a click for a resolved link. It never reports
// failure to its caller.
type ClickRecorder interface {
	Record(ctx context.Context, linkID uuid.UUID, visitor Visitor)
}

type ClickWriter interface {
	Create(ctx context.Context, click *model.Click) error
}

type clickRecorder struct {
	clicks  ClickWriter
	locator geo.Locator
	logger  *zap.Logger
}

func NewClickRecorder(clicks ClickWriter, locator geo.Locator) ClickRecorder {
	return &clickRecorder{
		clicks:  clicks,
		locator: locator,
		logger:  zap.L().With(zap.String("component", "ClickRecorder")),
	}
}

func (r *clickRecorder) Record(ctx context.Context, linkID uuid.UUID, visitor Visitor) {
	client := ParseUserAgent(visitor.UserAgent)
	loc := r.locator.Locate(ctx, visitor.IP)

	click := &model.Click{
		ID:        uuid.New(),
		LinkID:    linkID,
		IPAddress: optional(visitor.IP),
		UserAgent: visitor.UserAgent,
		Referer:   optional(visitor.Referer),
		Country:   optional(loc.Country),
		City:      optional(loc.City),
		Device:    optional(client.Device),
		Browser:   optional(client.Browser),
		OS:        optional(client.OS),
	}

	if err := r.clicks.Create(ctx, click); err != nil {
		metrics.ClickRecordTotal.WithLabelValues("failed").Inc()
		r.logger.Warn("Failed to record click", zap.Error(err), zap.String("link_id", linkID.String()))
		return
	}

	metrics.ClickRecordTotal.WithLabelValues("recorded").Inc()
	r.logger.Debug("Click recorded",
		zap.String("link_id", linkID.String()),
		zap.String("device", client.Device),
		zap.String("country", loc.Country),
	)
}

// optional maps "" to nil for nullable columns.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
