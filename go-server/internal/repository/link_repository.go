package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
)

// LinkRepository defines the persistence operations for links and their files
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	FindByShortCode(ctx context.Context, code string) (*model.Link, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
	FindByFilename(ctx context.Context, filename string) (*model.Link, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Link, error)
	ListFilesByUser(ctx context.Context, userID uuid.UUID) ([]model.File, error)
	ListPublic(ctx context.Context, limit int) ([]model.LinkWithOwner, error)
	ListAll(ctx context.Context, limit int) ([]model.LinkWithOwner, error)
	Update(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	ReserveClick(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (total int, active int, err error)
	Count(ctx context.Context, since *time.Time) (int, error)
}

const linkColumns = `l.id, l.short_code, l.original_url, l.custom_alias, l.description, l.password_hash,
	l.expires_at, l.max_clicks, l.click_count, l.is_active, l.og_title, l.og_description, l.og_image,
	l.user_id, l.created_at, l.updated_at`

const fileColumns = `f.id, f.filename, f.original_name, f.size, f.mime_type, f.url, f.created_at`

// PostgresLinkRepository implements LinkRepository using PostgreSQL
type PostgresLinkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresLinkRepository(db *pgxpool.Pool) *PostgresLinkRepository {
	return &PostgresLinkRepository{
		db:     db,
		logger: zap.L().With(zap.String("component", "PostgresLinkRepository")),
	}
}

func scanLink(row rowScanner, extra ...any) (*model.Link, error) {
	var l model.Link
	dest := []any{
		&l.ID, &l.ShortCode, &l.OriginalURL, &l.CustomAlias, &l.Description, &l.PasswordHash,
		&l.ExpiresAt, &l.MaxClicks, &l.ClickCount, &l.IsActive, &l.OGTitle, &l.OGDescription, &l.OGImage,
		&l.UserID, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &l, nil
}

// nullableFile receives the LEFT JOINed file columns.
type nullableFile struct {
	ID           *uuid.UUID
	Filename     *string
	OriginalName *string
	Size         *int64
	MimeType     *string
	URL          *string
	CreatedAt    *time.Time
}

func (f *nullableFile) dest() []any {
	return []any{&f.ID, &f.Filename, &f.OriginalName, &f.Size, &f.MimeType, &f.URL, &f.CreatedAt}
}

func (f *nullableFile) toFile(linkID uuid.UUID) *model.File {
	if f.ID == nil {
		return nil
	}
	return &model.File{
		ID:           *f.ID,
		LinkID:       linkID,
		Filename:     deref(f.Filename),
		OriginalName: deref(f.OriginalName),
		Size:         derefInt64(f.Size),
		MimeType:     deref(f.MimeType),
		URL:          deref(f.URL),
		CreatedAt:    derefTime(f.CreatedAt),
	}
}

// Create inserts the link and its optional file in one transaction
func (r *PostgresLinkRepository) Create(ctx context.Context, link *model.Link) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to start transaction", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO links (id, short_code, original_url, custom_alias, description, password_hash,
			expires_at, max_clicks, is_active, og_title, og_description, og_image, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11, $12)
		RETURNING click_count, is_active, created_at, updated_at`,
		link.ID, link.ShortCode, link.OriginalURL, link.CustomAlias, link.Description, link.PasswordHash,
		link.ExpiresAt, link.MaxClicks, link.OGTitle, link.OGDescription, link.OGImage, link.UserID,
	).Scan(&link.ClickCount, &link.IsActive, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrShortCodeTaken
		}
		r.logger.Error("Failed to insert link", zap.Error(err), zap.String("short_code", link.ShortCode))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if f := link.File; f != nil {
		f.LinkID = link.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO files (id, link_id, filename, original_name, size, mime_type, url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			f.ID, f.LinkID, f.Filename, f.OriginalName, f.Size, f.MimeType, f.URL,
		).Scan(&f.CreatedAt)
		if err != nil {
			r.logger.Error("Failed to insert file", zap.Error(err), zap.String("filename", f.Filename))
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	r.logger.Info("Link created", zap.String("short_code", link.ShortCode), zap.Bool("file", link.File != nil))
	return nil
}

func (r *PostgresLinkRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)", code).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check short code existence", zap.Error(err), zap.String("short_code", code))
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return exists, nil
}

func (r *PostgresLinkRepository) FindByShortCode(ctx context.Context, code string) (*model.Link, error) {
	return r.findOne(ctx, "l.short_code = $1", code)
}

func (r *PostgresLinkRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	return r.findOne(ctx, "l.id = $1", id)
}

func (r *PostgresLinkRepository) findOne(ctx context.Context, where string, arg any) (*model.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := "SELECT " + linkColumns + ", " + fileColumns + `
		FROM links l LEFT JOIN files f ON f.link_id = l.id
		WHERE ` + where

	var file nullableFile
	link, err := scanLink(r.db.QueryRow(ctx, query, arg), file.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		r.logger.Error("Database query error", zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	link.File = file.toFile(link.ID)

	return link, nil
}

// FindByFilename loads the link owning a stored file, so downloads see the
// same state as a short code lookup.
func (r *PostgresLinkRepository) FindByFilename(ctx context.Context, filename string) (*model.Link, error) {
	return r.findOne(ctx, "f.filename = $1", filename)
}

func (r *PostgresLinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, "SELECT "+linkColumns+", "+fileColumns+`
		FROM links l LEFT JOIN files f ON f.link_id = l.id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC`, userID)
	if err != nil {
		r.logger.Error("Failed to list user links", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	links := []model.Link{}
	for rows.Next() {
		var file nullableFile
		link, err := scanLink(rows, file.dest()...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		link.File = file.toFile(link.ID)
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return links, nil
}

func (r *PostgresLinkRepository) ListFilesByUser(ctx context.Context, userID uuid.UUID) ([]model.File, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.link_id, f.filename, f.original_name, f.size, f.mime_type, f.url, f.created_at
		FROM files f JOIN links l ON l.id = f.link_id
		WHERE l.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.LinkID, &f.Filename, &f.OriginalName, &f.Size, &f.MimeType, &f.URL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return files, nil
}

// ListPublic returns the newest active links with their owner identity
func (r *PostgresLinkRepository) ListPublic(ctx context.Context, limit int) ([]model.LinkWithOwner, error) {
	return r.listWithOwner(ctx, "WHERE l.is_active", limit)
}

// ListAll returns the newest links regardless of state, for auditing
func (r *PostgresLinkRepository) ListAll(ctx context.Context, limit int) ([]model.LinkWithOwner, error) {
	return r.listWithOwner(ctx, "", limit)
}

func (r *PostgresLinkRepository) listWithOwner(ctx context.Context, where string, limit int) ([]model.LinkWithOwner, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, "SELECT "+linkColumns+", "+fileColumns+`, u.name, u.email
		FROM links l
		LEFT JOIN files f ON f.link_id = l.id
		LEFT JOIN users u ON u.id = l.user_id
		`+where+`
		ORDER BY l.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		r.logger.Error("Failed to list links", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	links := []model.LinkWithOwner{}
	for rows.Next() {
		var (
			file  nullableFile
			owner model.LinkWithOwner
		)
		link, err := scanLink(rows, append(file.dest(), &owner.OwnerName, &owner.OwnerEmail)...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		link.File = file.toFile(link.ID)
		owner.Link = *link
		links = append(links, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return links, nil
}

// Update persists the editable fields. The active flag is never raised here.
func (r *PostgresLinkRepository) Update(ctx context.Context, link *model.Link) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		UPDATE links SET description = $2, password_hash = $3, expires_at = $4, max_clicks = $5,
			og_title = $6, og_description = $7, og_image = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		link.ID, link.Description, link.PasswordHash, link.ExpiresAt, link.MaxClicks,
		link.OGTitle, link.OGDescription, link.OGImage,
	).Scan(&link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLinkNotFound
		}
		r.logger.Error("Failed to update link", zap.Error(err), zap.String("id", link.ID.String()))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return nil
}

// Delete removes the link; clicks and file rows cascade
func (r *PostgresLinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, "DELETE FROM links WHERE id = $1", id)
	if err != nil {
		r.logger.Error("Failed to delete link", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// Deactivate flips the active flag off. It reports whether this call made the
// transition, so concurrent callers observe exactly one winner.
func (r *PostgresLinkRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		"UPDATE links SET is_active = FALSE, updated_at = now() WHERE id = $1 AND is_active", id)
	if err != nil {
		r.logger.Error("Failed to deactivate link", zap.Error(err), zap.String("id", id.String()))
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReserveClick increments the click counter only while the link is still
// servable at now. A false result means another request took the last slot
// or the link stopped being active.
func (r *PostgresLinkRepository) ReserveClick(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE links SET click_count = click_count + 1
		WHERE id = $1
			AND is_active
			AND (expires_at IS NULL OR expires_at > $2)
			AND (max_clicks IS NULL OR click_count < max_clicks)`, id, now)
	if err != nil {
		r.logger.Error("Failed to reserve click", zap.Error(err), zap.String("id", id.String()))
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PostgresLinkRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var total, active int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM links WHERE user_id = $1`, userID).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return total, active, nil
}

// Count returns the number of links, restricted to those created at or after
// since when it is non-nil
func (r *PostgresLinkRepository) Count(ctx context.Context, since *time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM links WHERE $1::timestamptz IS NULL OR created_at >= $1", since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return count, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
