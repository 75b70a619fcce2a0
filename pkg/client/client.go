// Package client is a typed HTTP client for the bookstore API, shared by
// bookctl and anything else that talks to the server programmatically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bookmarket/pkg/domain"
)

// APIError is a non-2xx response decoded into its message payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one bookstore server. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken attaches a bearer token to subsequent requests. An empty string
// clears it.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the currently attached bearer token.
func (c *Client) Token() string {
	return c.token
}

// AuthResult is the server's reply to register and login.
type AuthResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// BookInput carries the fields accepted when creating a book.
type BookInput struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn,omitempty"`
	PublishedYear int     `json:"publishedYear,omitempty"`
	Genre         string  `json:"genre"`
	Price         float64 `json:"price"`
	Description   string  `json:"description,omitempty"`
	Pages         int     `json:"pages,omitempty"`
	Publisher     string  `json:"publisher,omitempty"`
	Language      string  `json:"language,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// BookPatch is a partial update; nil fields are left untouched.
type BookPatch struct {
	Title         *string  `json:"title,omitempty"`
	Author        *string  `json:"author,omitempty"`
	ISBN          *string  `json:"isbn,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
	Genre         *string  `json:"genre,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Pages         *int     `json:"pages,omitempty"`
	Publisher     *string  `json:"publisher,omitempty"`
	Language      *string  `json:"language,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	Stock         *int     `json:"stock,omitempty"`
	Image         *string  `json:"image,omitempty"`
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &result); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// Logout invalidates the attached token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the account the attached token belongs to.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var resp struct {
		User domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return domain.User{}, err
	}
	return resp.User, nil
}

// ListBooks queries the catalog with the given filter.
func (c *Client) ListBooks(ctx context.Context, filter domain.BookFilter) (domain.BookListing, error) {
	var listing domain.BookListing
	path := "/api/books"
	if q := filterQuery(filter); q != "" {
		path += "?" + q
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return domain.BookListing{}, err
	}
	return listing, nil
}

// GetBook fetches a single book by ID.
func (c *Client) GetBook(ctx context.Context, id string) (domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodGet, "/api/books/"+url.PathEscape(id), nil, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// Genres returns the catalog's distinct genres.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var genres []string
	if err := c.do(ctx, http.MethodGet, "/api/books/meta/genres", nil, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// Authors returns the catalog's distinct authors.
func (c *Client) Authors(ctx context.Context) ([]string, error) {
	var authors []string
	if err := c.do(ctx, http.MethodGet, "/api/books/meta/authors", nil, &authors); err != nil {
		return nil, err
	}
	return authors, nil
}

// CreateBook adds a book to the catalog. Requires an editor or admin token.
func (c *Client) CreateBook(ctx context.Context, input BookInput) (domain.Book, error) {
	var resp struct {
		Book domain.Book `json:"book"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/books", input, &resp); err != nil {
		return domain.Book{}, err
	}
	return resp.Book, nil
}

// UpdateBook applies a partial update. Requires an editor or admin token.
func (c *Client) UpdateBook(ctx context.Context, id string, patch BookPatch) (domain.Book, error) {
	var resp struct {
		Book domain.Book `json:"book"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/books/"+url.PathEscape(id), patch, &resp); err != nil {
		return domain.Book{}, err
	}
	return resp.Book, nil
}

// DeleteBook removes a book and returns the deleted record. Requires an
// admin token.
func (c *Client) DeleteBook(ctx context.Context, id string) (domain.Book, error) {
	var resp struct {
		Book domain.Book `json:"book"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/books/"+url.PathEscape(id), nil, &resp); err != nil {
		return domain.Book{}, err
	}
	return resp.Book, nil
}

// UploadCover uploads a cover image for a book and returns the updated
// record. The image format is taken from the filename extension.
func (c *Client) UploadCover(ctx context.Context, id, filename string, data io.Reader) (domain.Book, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return domain.Book{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return domain.Book{}, fmt.Errorf("read cover data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.Book{}, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/books/"+url.PathEscape(id)+"/cover", &buf)
	if err != nil {
		return domain.Book{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp struct {
		Book domain.Book `json:"book"`
	}
	if err := c.send(req, &resp); err != nil {
		return domain.Book{}, err
	}
	return resp.Book, nil
}

func filterQuery(filter domain.BookFilter) string {
	q := url.Values{}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Author != "" {
		q.Set("author", filter.Author)
	}
	if filter.Genre != "" {
		q.Set("genre", filter.Genre)
	}
	if filter.Year != 0 {
		q.Set("year", strconv.Itoa(filter.Year))
	}
	if filter.MinPrice > 0 {
		q.Set("minPrice", strconv.FormatFloat(filter.MinPrice, 'f', -1, 64))
	}
	if filter.MaxPrice > 0 {
		q.Set("maxPrice", strconv.FormatFloat(filter.MaxPrice, 'f', -1, 64))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	return q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dst)
}

func (c *Client) send(req *http.Request, dst any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
			payload.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Message}
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
