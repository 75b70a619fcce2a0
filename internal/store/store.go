package store

import "bookmarket/pkg/domain"

// Store defines persistence operations for the credential and catalog stores.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	DeleteAllUsers() error

	// books
	SaveBook(domain.Book) error
	ListBooks(domain.BookFilter) ([]domain.Book, int, error)
	GetBook(id string) (domain.Book, bool, error)
	DeleteBook(id string) error
	DeleteAllBooks() error
	DistinctGenres() ([]string, error)
	DistinctAuthors() ([]string, error)
}

// SessionStore issues and verifies bearer tokens.
type SessionStore interface {
	NewSession(userID string, role domain.UserRole) (string, error)
	IdentityFromToken(token string) (domain.Identity, error)
	DeleteSession(token string) error
}
