package model

import (
	"time"

	"github.com/google/uuid"
)

// Click is one recorded resolution of a link. Rows are never updated.
type Click struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LinkID    uuid.UUID `json:"-" db:"link_id"`
	IPAddress *string   `json:"-" db:"ip_address"`
	UserAgent string    `json:"-" db:"user_agent"`
	Referer   *string   `json:"referer" db:"referer"`
	Country   *string   `json:"country" db:"country"`
	City      *string   `json:"city" db:"city"`
	Device    *string   `json:"device" db:"device"`
	Browser   *string   `json:"browser" db:"browser"`
	OS        *string   `json:"os" db:"os"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
