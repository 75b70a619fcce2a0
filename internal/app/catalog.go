package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookmarket/pkg/domain"
	"bookmarket/pkg/storage"
)

// coverURLExpiry is the lifetime of presigned cover URLs, the longest S3
// permits.
const coverURLExpiry = 7 * 24 * time.Hour

// BookInput carries the fields accepted when creating a book.
type BookInput struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	PublishedYear int     `json:"publishedYear"`
	Genre         string  `json:"genre"`
	Price         float64 `json:"price"`
	Description   string  `json:"description"`
	Pages         int     `json:"pages"`
	Publisher     string  `json:"publisher"`
	Language      string  `json:"language"`
	Image         string  `json:"image"`
}

// BookPatch is a partial update. Nil fields are left untouched; fields
// outside this allow-list are never writable through updates.
type BookPatch struct {
	Title         *string  `json:"title"`
	Author        *string  `json:"author"`
	ISBN          *string  `json:"isbn"`
	PublishedYear *int     `json:"publishedYear"`
	Genre         *string  `json:"genre"`
	Price         *float64 `json:"price"`
	Description   *string  `json:"description"`
	Pages         *int     `json:"pages"`
	Publisher     *string  `json:"publisher"`
	Language      *string  `json:"language"`
	Rating        *float64 `json:"rating"`
	Stock         *int     `json:"stock"`
	Image         *string  `json:"image"`
}

// ListBooks runs a filtered catalog query.
func (a *App) ListBooks(filter domain.BookFilter) (domain.BookListing, error) {
	books, total, err := a.store.ListBooks(filter)
	if err != nil {
		return domain.BookListing{}, fmt.Errorf("list books: %w", err)
	}
	return domain.BookListing{
		Books:   books,
		Total:   total,
		Showing: len(books),
	}, nil
}

// GetBook returns one catalog record.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// Genres returns the sorted distinct genres for filter controls.
func (a *App) Genres() ([]string, error) {
	genres, err := a.store.DistinctGenres()
	if err != nil {
		return nil, fmt.Errorf("distinct genres: %w", err)
	}
	return genres, nil
}

// Authors returns the sorted distinct authors for filter controls.
func (a *App) Authors() ([]string, error) {
	authors, err := a.store.DistinctAuthors()
	if err != nil {
		return nil, fmt.Errorf("distinct authors: %w", err)
	}
	return authors, nil
}

// CreateBook validates required fields, applies server-side defaults and
// persists a new record.
func (a *App) CreateBook(input BookInput) (domain.Book, error) {
	if strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(input.Author) == "" ||
		strings.TrimSpace(input.Genre) == "" ||
		input.Price <= 0 {
		return domain.Book{}, ErrBookFieldsRequired
	}
	if input.Pages < 0 {
		return domain.Book{}, ErrInvalidBookFields
	}
	year := input.PublishedYear
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	language := input.Language
	if language == "" {
		language = domain.DefaultLanguage
	}
	image := input.Image
	if image == "" {
		image = domain.DefaultBookImage
	}
	book := domain.Book{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		PublishedYear: year,
		Genre:         input.Genre,
		Price:         input.Price,
		Description:   input.Description,
		Pages:         input.Pages,
		Publisher:     input.Publisher,
		Language:      language,
		Rating:        0,
		Stock:         0,
		Image:         image,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook applies a partial update. Required-field validation is not
// re-run, but price, pages and stock may never go negative. Concurrent
// updates are last-write-wins.
func (a *App) UpdateBook(id string, patch BookPatch) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if (patch.Price != nil && *patch.Price < 0) ||
		(patch.Pages != nil && *patch.Pages < 0) ||
		(patch.Stock != nil && *patch.Stock < 0) {
		return domain.Book{}, ErrInvalidBookFields
	}
	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.ISBN != nil {
		book.ISBN = *patch.ISBN
	}
	if patch.PublishedYear != nil {
		book.PublishedYear = *patch.PublishedYear
	}
	if patch.Genre != nil {
		book.Genre = *patch.Genre
	}
	if patch.Price != nil {
		book.Price = *patch.Price
	}
	if patch.Description != nil {
		book.Description = *patch.Description
	}
	if patch.Pages != nil {
		book.Pages = *patch.Pages
	}
	if patch.Publisher != nil {
		book.Publisher = *patch.Publisher
	}
	if patch.Language != nil {
		book.Language = *patch.Language
	}
	if patch.Rating != nil {
		book.Rating = *patch.Rating
	}
	if patch.Stock != nil {
		book.Stock = *patch.Stock
	}
	if patch.Image != nil {
		book.Image = *patch.Image
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a record and returns what was deleted.
func (a *App) DeleteBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if err := a.store.DeleteBook(id); err != nil {
		return domain.Book{}, fmt.Errorf("delete book: %w", err)
	}
	return book, nil
}

// AttachCover stores a cover image and points the book's image URL at it.
func (a *App) AttachCover(ctx context.Context, id, filename, contentType string, r io.Reader, size int64) (domain.Book, error) {
	if a.covers == nil {
		return domain.Book{}, ErrCoverStorageUnavailable
	}
	if !storage.AllowedCoverType(contentType) {
		return domain.Book{}, ErrUnsupportedCoverType
	}
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	key := fmt.Sprintf("covers/%s/%s", book.ID, sanitizeFilename(filename))
	if err := a.covers.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	url, err := a.covers.PresignGet(ctx, key, coverURLExpiry)
	if err != nil {
		return domain.Book{}, fmt.Errorf("presign cover: %w", err)
	}
	book.Image = url
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("update book image: %w", err)
	}
	return book, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.NewString()
	}
	// keep only the final path element and strip separators
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return uuid.NewString()
	}
	return name
}
