package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
)

// ClickRepository stores immutable click events and answers the aggregate
// queries the dashboards need
type ClickRepository interface {
	Create(ctx context.Context, click *model.Click) error
	ListByLink(ctx context.Context, linkID uuid.UUID, limit int) ([]model.Click, error)
	ListByUser(ctx context.Context, userID uuid.UUID, since *time.Time) ([]model.Click, error)
	LinkTotalsByUser(ctx context.Context, userID uuid.UUID) ([]model.LinkClicks, error)
	CountByUser(ctx context.Context, userID uuid.UUID, since *time.Time) (int, error)
	Count(ctx context.Context, since *time.Time) (int, error)
}

const clickColumns = `c.id, c.link_id, c.ip_address, c.user_agent, c.referer, c.country, c.city,
	c.device, c.browser, c.os, c.created_at`

type PostgresClickRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresClickRepository(db *pgxpool.Pool) *PostgresClickRepository {
	return &PostgresClickRepository{
		db:     db,
		logger: zap.L().With(zap.String("component", "PostgresClickRepository")),
	}
}

func scanClick(row rowScanner) (model.Click, error) {
	var c model.Click
	err := row.Scan(&c.ID, &c.LinkID, &c.IPAddress, &c.UserAgent, &c.Referer, &c.Country, &c.City,
		&c.Device, &c.Browser, &c.OS, &c.CreatedAt)
	return c, err
}

func (r *PostgresClickRepository) Create(ctx context.Context, click *model.Click) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO clicks (id, link_id, ip_address, user_agent, referer, country, city, device, browser, os)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		click.ID, click.LinkID, click.IPAddress, click.UserAgent, click.Referer,
		click.Country, click.City, click.Device, click.Browser, click.OS,
	).Scan(&click.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert click", zap.Error(err), zap.String("link_id", click.LinkID.String()))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return nil
}

// ListByLink returns the link's clicks newest first; limit <= 0 means all
func (r *PostgresClickRepository) ListByLink(ctx context.Context, linkID uuid.UUID, limit int) ([]model.Click, error) {
	query := "SELECT " + clickColumns + " FROM clicks c WHERE c.link_id = $1 ORDER BY c.created_at DESC"
	args := []any{linkID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// ListByUser returns every click on links owned by the user, oldest first
func (r *PostgresClickRepository) ListByUser(ctx context.Context, userID uuid.UUID, since *time.Time) ([]model.Click, error) {
	return r.list(ctx, "SELECT "+clickColumns+`
		FROM clicks c JOIN links l ON l.id = c.link_id
		WHERE l.user_id = $1 AND ($2::timestamptz IS NULL OR c.created_at >= $2)
		ORDER BY c.created_at`, userID, since)
}

func (r *PostgresClickRepository) list(ctx context.Context, query string, args ...any) ([]model.Click, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list clicks", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	clicks := []model.Click{}
	for rows.Next() {
		c, err := scanClick(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return clicks, nil
}

// LinkTotalsByUser returns recorded click counts per link, newest link first
func (r *PostgresClickRepository) LinkTotalsByUser(ctx context.Context, userID uuid.UUID) ([]model.LinkClicks, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.short_code, l.original_url, l.description, COUNT(c.id)
		FROM links l LEFT JOIN clicks c ON c.link_id = l.id
		WHERE l.user_id = $1
		GROUP BY l.id
		ORDER BY l.created_at DESC`, userID)
	if err != nil {
		r.logger.Error("Failed to count clicks per link", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	totals := []model.LinkClicks{}
	for rows.Next() {
		var lc model.LinkClicks
		if err := rows.Scan(&lc.LinkID, &lc.ShortCode, &lc.OriginalURL, &lc.Description, &lc.Clicks); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		totals = append(totals, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return totals, nil
}

func (r *PostgresClickRepository) CountByUser(ctx context.Context, userID uuid.UUID, since *time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM clicks c JOIN links l ON l.id = c.link_id
		WHERE l.user_id = $1 AND ($2::timestamptz IS NULL OR c.created_at >= $2)`,
		userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return count, nil
}

func (r *PostgresClickRepository) Count(ctx context.Context, since *time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM clicks WHERE $1::timestamptz IS NULL OR created_at >= $1", since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return count, nil
}
