package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	other := &pgconn.PgError{Code: "23503"}

	assert.True(t, isUniqueViolation(unique))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, isUniqueViolation(other))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNullableFile_ToFile(t *testing.T) {
	linkID := uuid.New()

	var empty nullableFile
	assert.Nil(t, empty.toFile(linkID))

	id := uuid.New()
	name := "a1b2.pdf"
	original := "report.pdf"
	size := int64(2048)
	mime := "application/pdf"
	url := "https://files.example.com/a1b2.pdf"
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	f := nullableFile{
		ID: &id, Filename: &name, OriginalName: &original, Size: &size,
		MimeType: &mime, URL: &url, CreatedAt: &created,
	}
	file := f.toFile(linkID)
	require.NotNil(t, file)
	assert.Equal(t, id, file.ID)
	assert.Equal(t, linkID, file.LinkID)
	assert.Equal(t, "report.pdf", file.OriginalName)
	assert.Equal(t, int64(2048), file.Size)
	assert.Equal(t, created, file.CreatedAt)
}

func TestNullableFile_DestMatchesColumns(t *testing.T) {
	var f nullableFile
	assert.Len(t, f.dest(), 7)
}
