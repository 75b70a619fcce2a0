package domain

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleEditor UserRole = "editor"
	RoleUser   UserRole = "user"
)

// CanEditCatalog reports whether the role may create or update books.
func (r UserRole) CanEditCatalog() bool {
	return r == RoleAdmin || r == RoleEditor
}

const (
	// DefaultLanguage is assigned to books created without a language.
	DefaultLanguage = "English"

	// DefaultBookImage is the placeholder cover used when none is supplied.
	DefaultBookImage = "https://images.pexels.com/photos/159711/books-bookstore-book-reading-159711.jpeg"

	// DefaultListLimit caps catalog listings when no limit is requested.
	DefaultListLimit = 22
)

type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedYear int       `json:"publishedYear"`
	Genre         string    `json:"genre"`
	Price         float64   `json:"price"`
	Description   string    `json:"description"`
	Pages         int       `json:"pages"`
	Publisher     string    `json:"publisher"`
	Language      string    `json:"language"`
	Rating        float64   `json:"rating"`
	Stock         int       `json:"stock"`
	Image         string    `json:"image"`
	CreatedAt     time.Time `json:"createdAt"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is the decoded content of a verified bearer token.
type Identity struct {
	UserID string
	Role   UserRole
}

// BookFilter narrows a catalog listing. Zero values mean "not supplied".
type BookFilter struct {
	// Search matches as a case-insensitive substring across title,
	// author, description and genre.
	Search string
	// Author matches as a case-insensitive substring on author only.
	Author string
	// Genre matches the genre exactly, ignoring case.
	Genre string
	// Year matches publishedYear exactly.
	Year int
	// MinPrice and MaxPrice are inclusive bounds; either may stand alone.
	MinPrice float64
	MaxPrice float64
	// Limit caps returned books, not the reported total.
	Limit int
}

// BookListing is the result of a filtered catalog query. Total counts every
// match regardless of limit so clients can tell whether more results exist.
type BookListing struct {
	Books   []Book `json:"books"`
	Total   int    `json:"total"`
	Showing int    `json:"showing"`
}
