package model

import (
	"time"

	"github.com/google/uuid"
)

// Link is a shortened destination. Destination is either an absolute URL or
// an internal /download/{filename} path when the link carries a File.
type Link struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ShortCode     string     `json:"shortCode" db:"short_code"`
	OriginalURL   string     `json:"originalUrl" db:"original_url"`
	CustomAlias   *string    `json:"customAlias,omitempty" db:"custom_alias"`
	Description   *string    `json:"description,omitempty" db:"description"`
	PasswordHash  *string    `json:"-" db:"password_hash"`
	ExpiresAt     *time.Time `json:"expirationDate,omitempty" db:"expires_at"`
	MaxClicks     *int       `json:"maxClicks,omitempty" db:"max_clicks"`
	ClickCount    int        `json:"clicks" db:"click_count"`
	IsActive      bool       `json:"isActive" db:"is_active"`
	OGTitle       *string    `json:"ogTitle,omitempty" db:"og_title"`
	OGDescription *string    `json:"ogDescription,omitempty" db:"og_description"`
	OGImage       *string    `json:"ogImage,omitempty" db:"og_image"`
	UserID        *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`

	File *File `json:"file,omitempty" db:"-"`
}

// HasPassword reports whether access to the link is gated by a password.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// Expired reports whether the expiration instant has passed at now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// LimitReached reports whether the click counter has reached the maximum.
func (l *Link) LimitReached() bool {
	return l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks
}

// OwnedBy reports whether userID owns the link.
func (l *Link) OwnedBy(userID uuid.UUID) bool {
	return l.UserID != nil && *l.UserID == userID
}

// File is the uploaded payload behind a file link.
type File struct {
	ID           uuid.UUID `json:"id" db:"id"`
	LinkID       uuid.UUID `json:"-" db:"link_id"`
	Filename     string    `json:"filename" db:"filename"`
	OriginalName string    `json:"originalName" db:"original_name"`
	Size         int64     `json:"size" db:"size"`
	MimeType     string    `json:"mimeType" db:"mime_type"`
	URL          string    `json:"url" db:"url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// LinkWithOwner is a link listing row joined with its owner's identity.
type LinkWithOwner struct {
	Link
	OwnerName  *string `json:"-"`
	OwnerEmail *string `json:"-"`
}

// LinkClicks is a link identity paired with its recorded click count.
type LinkClicks struct {
	LinkID      uuid.UUID
	ShortCode   string
	OriginalURL string
	Description *string
	Clicks      int
}
