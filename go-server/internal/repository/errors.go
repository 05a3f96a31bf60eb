package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound    = errors.New("link not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrShortCodeTaken  = errors.New("short code already exists")
	ErrEmailTaken      = errors.New("email already exists")
	ErrLastAdmin       = errors.New("cannot remove the last active admin")
	ErrDatabaseError   = errors.New("database error")
)

const dbTimeout = 5 * time.Second

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
