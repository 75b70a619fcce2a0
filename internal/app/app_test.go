package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"bookmarket/internal/store"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	a, err := New(Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestRegisterIssuesTokenAndSanitizedUser(t *testing.T) {
	a := newTestApp(t)
	user, token, err := a.Register("reader", "reader@example.com", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("new accounts must get role user, got %q", user.Role)
	}
	if user.PasswordHash == "password123" {
		t.Fatalf("password must be stored hashed")
	}
	got, err := a.CurrentUser(token)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if got.ID != user.ID || got.Email != "reader@example.com" {
		t.Fatalf("current user = %+v", got)
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	a := newTestApp(t)
	cases := [][3]string{
		{"", "a@example.com", "pw"},
		{"name", "", "pw"},
		{"name", "a@example.com", ""},
	}
	for _, c := range cases {
		if _, _, err := a.Register(c[0], c[1], c[2]); !errors.Is(err, ErrFieldsRequired) {
			t.Fatalf("register(%q,%q,%q) = %v, want ErrFieldsRequired", c[0], c[1], c[2], err)
		}
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	a := newTestApp(t)
	_, firstToken, err := a.Register("first", "dup@example.com", "pw1")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, _, err := a.Register("second", "dup@example.com", "pw2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email = %v, want ErrEmailTaken", err)
	}
	// the first account's token still resolves to the first account
	got, err := a.CurrentUser(firstToken)
	if err != nil {
		t.Fatalf("current user after conflict: %v", err)
	}
	if got.Username != "first" {
		t.Fatalf("token resolved to %q, want first", got.Username)
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	a := newTestApp(t)
	if _, _, err := a.Register("same", "one@example.com", "pw"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, _, err := a.Register("same", "two@example.com", "pw"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginDoesNotLeakAccountExistence(t *testing.T) {
	a := newTestApp(t)
	if _, _, err := a.Register("reader", "reader@example.com", "right-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, _, wrongPassword := a.Login("reader@example.com", "wrong-password")
	_, _, unknownEmail := a.Login("ghost@example.com", "whatever")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", wrongPassword)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("unknown email = %v, want ErrInvalidCredentials", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("error shapes differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestLoginSuccess(t *testing.T) {
	a := newTestApp(t)
	if _, _, err := a.Register("reader", "reader@example.com", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	user, token, err := a.Login("Reader@Example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || user.Email != "reader@example.com" {
		t.Fatalf("login returned user=%+v token=%q", user, token)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.VerifyToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify garbage = %v, want ErrInvalidToken", err)
	}
}

func TestInvalidateTokenEndsSession(t *testing.T) {
	a := newTestApp(t)
	_, token, err := a.Register("reader", "reader@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := a.InvalidateToken(token); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := a.CurrentUser(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("current user after logout = %v, want ErrInvalidToken", err)
	}
}

func TestCreateBookAppliesDefaults(t *testing.T) {
	a := newTestApp(t)
	created, err := a.CreateBook(BookInput{
		Title:  "1984",
		Author: "George Orwell",
		Genre:  "Dystopian",
		Price:  9.99,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := a.GetBook(created.ID)
	if err != nil {
		t.Fatalf("get after create: %v", err)
	}
	if got.Title != "1984" || got.Author != "George Orwell" || got.Genre != "Dystopian" || got.Price != 9.99 {
		t.Fatalf("submitted fields not round-tripped: %+v", got)
	}
	if got.Rating != 0 || got.Stock != 0 {
		t.Fatalf("rating/stock defaults: %+v", got)
	}
	if got.Language != domain.DefaultLanguage {
		t.Fatalf("language default: %q", got.Language)
	}
	if got.Image != domain.DefaultBookImage {
		t.Fatalf("image default: %q", got.Image)
	}
	if got.PublishedYear != time.Now().UTC().Year() {
		t.Fatalf("publishedYear default: %d", got.PublishedYear)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("createdAt must be set at insert")
	}
}

func TestCreateBookValidation(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.CreateBook(BookInput{Author: "x", Genre: "y", Price: 1}); !errors.Is(err, ErrBookFieldsRequired) {
		t.Fatalf("missing title = %v", err)
	}
	if _, err := a.CreateBook(BookInput{Title: "t", Author: "x", Genre: "y"}); !errors.Is(err, ErrBookFieldsRequired) {
		t.Fatalf("missing price = %v", err)
	}
	if _, err := a.CreateBook(BookInput{Title: "t", Author: "x", Genre: "y", Price: 1, Pages: -5}); !errors.Is(err, ErrInvalidBookFields) {
		t.Fatalf("negative pages = %v", err)
	}
}

func TestUpdateBookPartialPatch(t *testing.T) {
	a := newTestApp(t)
	created, err := a.CreateBook(BookInput{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 9.99})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newPrice := 12.50
	newStock := 7
	updated, err := a.UpdateBook(created.ID, BookPatch{Price: &newPrice, Stock: &newStock})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != 12.50 || updated.Stock != 7 {
		t.Fatalf("patched fields: %+v", updated)
	}
	if updated.Title != "1984" || updated.Author != "George Orwell" {
		t.Fatalf("unpatched fields must survive: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt is immutable")
	}

	negative := -1.0
	if _, err := a.UpdateBook(created.ID, BookPatch{Price: &negative}); !errors.Is(err, ErrInvalidBookFields) {
		t.Fatalf("negative price on update = %v", err)
	}
	if _, err := a.UpdateBook("missing-id", BookPatch{Price: &newPrice}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("update missing = %v", err)
	}
}

func TestDeleteBookReturnsDeletedRecord(t *testing.T) {
	a := newTestApp(t)
	created, err := a.CreateBook(BookInput{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 9.99})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	deleted, err := a.DeleteBook(created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != created.ID {
		t.Fatalf("deleted %q, want %q", deleted.ID, created.ID)
	}
	if _, err := a.GetBook(created.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("get after delete = %v, want ErrBookNotFound", err)
	}
	if _, err := a.DeleteBook(created.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("double delete = %v, want ErrBookNotFound", err)
	}
}

func TestGetBookMissing(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.GetBook("nope"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("get missing = %v, want ErrBookNotFound", err)
	}
}

func TestAttachCoverWithoutStorage(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.AttachCover(context.Background(), "id", "cover.jpg", "image/jpeg", nil, 0); !errors.Is(err, ErrCoverStorageUnavailable) {
		t.Fatalf("attach without storage = %v", err)
	}
}

func newTestAppWithCovers(t *testing.T) (*App, *storage.MemoryCoverStore) {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	covers := storage.NewMemoryCoverStore()
	a, err := New(Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
		Covers:   covers,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, covers
}

func TestAttachCoverStoresImageAndRewritesURL(t *testing.T) {
	a, covers := newTestAppWithCovers(t)
	created, err := a.CreateBook(BookInput{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 9.99})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	payload := []byte("png-bytes")
	updated, err := a.AttachCover(context.Background(), created.ID, "cover.png", "image/png", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("attach cover: %v", err)
	}
	key := "covers/" + created.ID + "/cover.png"
	data, contentType, ok := covers.Object(key)
	if !ok {
		t.Fatalf("cover object %q not stored", key)
	}
	if !bytes.Equal(data, payload) || contentType != "image/png" {
		t.Fatalf("stored object = %q (%s)", data, contentType)
	}
	if updated.Image == domain.DefaultBookImage || updated.Image == "" {
		t.Fatalf("image URL not rewritten: %q", updated.Image)
	}
	// the new URL is persisted, not just returned
	got, err := a.GetBook(created.ID)
	if err != nil {
		t.Fatalf("get after attach: %v", err)
	}
	if got.Image != updated.Image {
		t.Fatalf("persisted image = %q, want %q", got.Image, updated.Image)
	}
}

func TestAttachCoverValidation(t *testing.T) {
	a, _ := newTestAppWithCovers(t)
	created, err := a.CreateBook(BookInput{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 9.99})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	payload := bytes.NewReader([]byte("data"))
	if _, err := a.AttachCover(context.Background(), "missing-id", "c.png", "image/png", payload, 4); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("attach to missing book = %v, want ErrBookNotFound", err)
	}
	if _, err := a.AttachCover(context.Background(), created.ID, "c.pdf", "application/pdf", payload, 4); !errors.Is(err, ErrUnsupportedCoverType) {
		t.Fatalf("non-image content type = %v, want ErrUnsupportedCoverType", err)
	}
}

func TestInvalidateTokenRejectsGarbage(t *testing.T) {
	a := newTestApp(t)
	if err := a.InvalidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("invalidate garbage = %v, want ErrInvalidToken", err)
	}
}
