package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"bookmarket/internal/app"
	"bookmarket/internal/server"
	"bookmarket/internal/store"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/storage"
)

func newTestBackend(t *testing.T) (*Client, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	a, err := app.New(app.Config{Store: mem, Sessions: sessions, Covers: storage.NewMemoryCoverStore()})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ts := httptest.NewServer(server.New(server.Config{App: a}).Router())
	t.Cleanup(ts.Close)
	return New(ts.URL), mem
}

func seedEditor(t *testing.T, c *Client, mem *store.MemoryStore) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := mem.SaveUser(domain.User{
		ID:           "editor-id",
		Username:     "editor",
		Email:        "editor@bookstore.com",
		PasswordHash: hash,
		Role:         domain.RoleEditor,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	result, err := c.Login(context.Background(), "editor@bookstore.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	c.SetToken(result.Token)
}

func TestHealthAndAuthFlow(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	reg, err := c.Register(ctx, "reader", "reader@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Token == "" || reg.User.Role != domain.RoleUser {
		t.Fatalf("unexpected register result: %+v", reg)
	}
	c.SetToken(reg.Token)

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Email != "reader@example.com" {
		t.Errorf("Me email = %q", me.Email)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.Me(ctx); err == nil {
		t.Fatal("Me after logout should fail")
	}
}

func TestAPIErrorShape(t *testing.T) {
	c, _ := newTestBackend(t)
	_, err := c.Login(context.Background(), "nobody@example.com", "pw")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	c, mem := newTestBackend(t)
	seedEditor(t, c, mem)
	ctx := context.Background()

	created, err := c.CreateBook(ctx, BookInput{
		Title:  "Nineteen Eighty-Four",
		Author: "George Orwell",
		Genre:  "Dystopian",
		Price:  9.99,
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if created.ID == "" || created.Language != domain.DefaultLanguage {
		t.Fatalf("unexpected created book: %+v", created)
	}

	fetched, err := c.GetBook(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if fetched.Title != created.Title {
		t.Errorf("fetched title = %q", fetched.Title)
	}

	price := 12.5
	updated, err := c.UpdateBook(ctx, created.ID, BookPatch{Price: &price})
	if err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	if updated.Price != 12.5 || updated.Author != created.Author {
		t.Errorf("unexpected updated book: %+v", updated)
	}

	listing, err := c.ListBooks(ctx, domain.BookFilter{Search: "orwell"})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if listing.Total != 1 || listing.Showing != 1 {
		t.Errorf("listing = %+v", listing)
	}

	genres, err := c.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres: %v", err)
	}
	if len(genres) != 1 || genres[0] != "Dystopian" {
		t.Errorf("genres = %v", genres)
	}
}

func TestUploadCover(t *testing.T) {
	c, mem := newTestBackend(t)
	seedEditor(t, c, mem)
	ctx := context.Background()

	created, err := c.CreateBook(ctx, BookInput{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 9.99})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	updated, err := c.UploadCover(ctx, created.ID, "cover.png", bytes.NewReader([]byte("png-bytes")))
	if err != nil {
		t.Fatalf("UploadCover: %v", err)
	}
	if updated.Image == created.Image || updated.Image == "" {
		t.Errorf("image URL not rewritten: %q", updated.Image)
	}

	// the format comes from the extension; unknown extensions are rejected
	if _, err := c.UploadCover(ctx, created.ID, "cover.xyz", bytes.NewReader([]byte("x"))); err == nil {
		t.Error("unsupported extension should fail")
	}
}

func TestFilterQueryEncoding(t *testing.T) {
	got := filterQuery(domain.BookFilter{
		Search:   "war & peace",
		Genre:    "Classic",
		MinPrice: 5,
		Limit:    10,
	})
	want := "genre=Classic&limit=10&minPrice=5&search=war+%26+peace"
	if got != want {
		t.Errorf("filterQuery = %q, want %q", got, want)
	}
	if filterQuery(domain.BookFilter{}) != "" {
		t.Errorf("empty filter should encode to empty query")
	}
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")

	// missing file reads as empty
	token, err := LoadToken(path)
	if err != nil || token != "" {
		t.Fatalf("LoadToken on missing file = %q, %v", token, err)
	}

	if err := SaveToken(path, "abc123"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	token, err = LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if token != "abc123" {
		t.Errorf("token = %q", token)
	}

	if err := ClearToken(path); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := ClearToken(path); err != nil {
		t.Fatalf("ClearToken on missing file: %v", err)
	}
}
