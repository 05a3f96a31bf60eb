package service

import "errors"

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrMissingTarget    = errors.New("a URL or a file is required")
	ErrInvalidAlias     = errors.New("invalid custom alias")
	ErrAliasTaken       = errors.New("alias already in use")
	ErrIDGenerationMax  = errors.New("failed to generate unique ID after max attempts")
	ErrInvalidMaxClicks = errors.New("maxClicks must be a positive integer")
	ErrInvalidExpiry    = errors.New("expiration date must be in the future")
	ErrFileUpload       = errors.New("file upload failed")

	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSignupClosed       = errors.New("signup is closed")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailTaken         = errors.New("email already in use")
	ErrWrongPassword      = errors.New("current password is incorrect")

	ErrSelfModification = errors.New("admins cannot modify their own account")
	ErrSelfDeletion     = errors.New("admins cannot delete their own account")
	ErrLastAdmin        = errors.New("cannot delete the last active admin")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidDays      = errors.New("days must be 7 or 30")
)

const minPasswordLength = 6
