// Command seed wipes the database and loads the demo accounts and catalog.
package main

import (
	"log"
	"log/slog"
	"time"

	"bookmarket/internal/config"
	"bookmarket/internal/store"
	"bookmarket/internal/util"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
)

var seedAccounts = []struct {
	username string
	email    string
	role     domain.UserRole
}{
	{"admin", "admin@bookstore.com", domain.RoleAdmin},
	{"editor", "editor@bookstore.com", domain.RoleEditor},
	{"user", "user@bookstore.com", domain.RoleUser},
}

var seedBooks = []domain.Book{
	{
		Title:         "The Great Gatsby",
		Author:        "F. Scott Fitzgerald",
		Genre:         "Classic",
		Price:         10.99,
		Description:   "A novel set in the Roaring Twenties.",
		Pages:         180,
		Publisher:     "Scribner",
		Language:      "English",
		Rating:        4.2,
		Stock:         12,
		PublishedYear: 1925,
		ISBN:          "9780743273565",
	},
	{
		Title:         "To Kill a Mockingbird",
		Author:        "Harper Lee",
		Genre:         "Classic",
		Price:         8.99,
		Description:   "A novel about racial injustice in the Deep South.",
		Pages:         281,
		Publisher:     "J.B. Lippincott & Co.",
		Language:      "English",
		Rating:        4.8,
		Stock:         8,
		PublishedYear: 1960,
		ISBN:          "9780061120084",
	},
	{
		Title:         "1984",
		Author:        "George Orwell",
		Genre:         "Dystopian",
		Price:         9.99,
		Description:   "A novel about a dystopian future.",
		Pages:         328,
		Publisher:     "Secker & Warburg",
		Language:      "English",
		Rating:        4.6,
		Stock:         15,
		PublishedYear: 1949,
		ISBN:          "9780451524935",
	},
}

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.DeleteAllUsers(); err != nil {
		log.Fatalf("failed to clear users: %v", err)
	}
	if err := db.DeleteAllBooks(); err != nil {
		log.Fatalf("failed to clear books: %v", err)
	}

	for _, account := range seedAccounts {
		hash, err := auth.HashPassword("password123")
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		user := domain.User{
			ID:           util.NewID(),
			Username:     account.username,
			Email:        account.email,
			PasswordHash: hash,
			Role:         account.role,
			CreatedAt:    time.Now().UTC(),
		}
		if err := db.SaveUser(user); err != nil {
			log.Fatalf("failed to seed user %s: %v", account.username, err)
		}
		slog.Info("seeded user", "username", user.Username, "role", user.Role)
	}

	for i, book := range seedBooks {
		book.ID = util.NewID()
		book.Image = domain.DefaultBookImage
		// spread creation times so list order matches seed order
		book.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if err := db.SaveBook(book); err != nil {
			log.Fatalf("failed to seed book %q: %v", book.Title, err)
		}
		slog.Info("seeded book", "title", book.Title)
	}

	slog.Info("seed complete", "users", len(seedAccounts), "books", len(seedBooks))
}
