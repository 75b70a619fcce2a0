package store

import (
	"sort"
	"strings"
	"sync"

	"bookmarket/pkg/domain"
)

// MemoryStore keeps users and books in-process. It backs tests and local
// development and mirrors the observable semantics of GormStore.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[string]domain.Book
	order    []string // book insertion order
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	username map[string]string // username -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    make(map[string]domain.Book),
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		username: make(map[string]string),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		delete(m.email, prev.Email)
		delete(m.username, prev.Username)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	m.username[u.Username] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.username[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// DeleteAllUsers wipes the credential store.
func (m *MemoryStore) DeleteAllUsers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]domain.User)
	m.email = make(map[string]string)
	m.username = make(map[string]string)
	return nil
}

// SaveBook stores or replaces a book record, tracking insertion order.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.order = append(m.order, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// ListBooks returns books matching the filter in insertion order, plus the
// full match count ignoring the limit.
func (m *MemoryStore) ListBooks(filter domain.BookFilter) ([]domain.Book, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	books := make([]domain.Book, 0, limit)
	total := 0
	for _, id := range m.order {
		b, ok := m.books[id]
		if !ok || !matchesFilter(b, filter) {
			continue
		}
		total++
		if len(books) < limit {
			books = append(books, b)
		}
	}
	return books, total, nil
}

func matchesFilter(b domain.Book, f domain.BookFilter) bool {
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(b.Author), term) &&
			!strings.Contains(strings.ToLower(b.Description), term) &&
			!strings.Contains(strings.ToLower(b.Genre), term) {
			return false
		}
	}
	if f.Author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(f.Author)) {
		return false
	}
	if f.Genre != "" && !strings.EqualFold(b.Genre, f.Genre) {
		return false
	}
	if f.Year != 0 && b.PublishedYear != f.Year {
		return false
	}
	if f.MinPrice > 0 && b.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && b.Price > f.MaxPrice {
		return false
	}
	return true
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// DeleteBook removes a book.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}

// DeleteAllBooks wipes the catalog.
func (m *MemoryStore) DeleteAllBooks() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = make(map[string]domain.Book)
	m.order = nil
	return nil
}

// DistinctGenres returns the sorted set of non-empty genres.
func (m *MemoryStore) DistinctGenres() ([]string, error) {
	return m.distinct(func(b domain.Book) string { return b.Genre }), nil
}

// DistinctAuthors returns the sorted set of non-empty authors.
func (m *MemoryStore) DistinctAuthors() ([]string, error) {
	return m.distinct(func(b domain.Book) string { return b.Author }), nil
}

func (m *MemoryStore) distinct(field func(domain.Book) string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, b := range m.books {
		v := field(b)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
