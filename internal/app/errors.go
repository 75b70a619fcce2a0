package app

import "errors"

// Error values returned to HTTP handlers. Their messages are client-safe;
// anything not listed here is reported to clients as a generic failure with
// detail kept in server logs.
var (
	ErrFieldsRequired     = errors.New("Username, email, and password are required")
	ErrBookFieldsRequired = errors.New("Title, author, genre, and price are required")
	ErrInvalidBookFields  = errors.New("Price, pages, and stock must not be negative")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses carry no account-enumeration signal.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	ErrInvalidToken = errors.New("Invalid or expired token")

	ErrEmailTaken    = errors.New("Email already registered")
	ErrUsernameTaken = errors.New("Username already taken")

	ErrUserNotFound = errors.New("User not found")
	ErrBookNotFound = errors.New("Book not found")

	ErrCoverStorageUnavailable = errors.New("Cover storage unavailable")
	ErrUnsupportedCoverType    = errors.New("Cover image must be JPEG, PNG, WebP, or GIF")
)
