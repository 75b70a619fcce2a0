package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookmarket/internal/app"
	"bookmarket/internal/ratelimit"
	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// maxCoverBytes caps cover image uploads.
const maxCoverBytes = 5 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	AllowedOrigins []string
}

// Server exposes the bookstore HTTP API.
type Server struct {
	app     *app.App
	limiter *ratelimit.FixedWindowLimiter
	origins []string
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		limiter: cfg.Limiter,
		origins: cfg.AllowedOrigins,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = util.WithCORS(s.origins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/me", s.handleMe)

	// catalog
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookSubtree)

	s.mux.HandleFunc("/", s.handleRouteNotFound)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Book Marketplace API is running",
	})
}

func (s *Server) handleRouteNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found")
}

// auth handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Username, req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := s.app.InvalidateToken(token); err != nil {
		s.writeAppError(w, r, err, "Failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := s.app.CurrentUser(token)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.User{"user": user})
}

// catalog handlers

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		if !s.requireEditor(w, r) {
			return
		}
		s.handleCreateBook(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /api/books/{id}, /api/books/{id}/cover, /api/books/meta/{genres,authors}
func (s *Server) handleBookSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/books/")
	switch path {
	case "meta/genres":
		s.handleMeta(w, r, s.app.Genres, "Failed to fetch genres")
		return
	case "meta/authors":
		s.handleMeta(w, r, s.app.Authors, "Failed to fetch authors")
		return
	}
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		s.handleRouteNotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] == "cover" && r.Method == http.MethodPost {
			if !s.requireEditor(w, r) {
				return
			}
			s.handleUploadCover(w, r, id)
			return
		}
		s.handleRouteNotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetBook(w, r, id)
	case http.MethodPut:
		if !s.requireEditor(w, r) {
			return
		}
		s.handleUpdateBook(w, r, id)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		s.handleDeleteBook(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseBookFilter(w, r)
	if !ok {
		return
	}
	listing, err := s.app.ListBooks(filter)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to fetch books")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func parseBookFilter(w http.ResponseWriter, r *http.Request) (domain.BookFilter, bool) {
	q := r.URL.Query()
	filter := domain.BookFilter{
		Search: q.Get("search"),
		Author: q.Get("author"),
		Genre:  q.Get("genre"),
	}
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year parameter")
			return filter, false
		}
		filter.Year = n
	}
	if v := q.Get("minPrice"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "Invalid minPrice parameter")
			return filter, false
		}
		filter.MinPrice = f
	}
	if v := q.Get("maxPrice"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "Invalid maxPrice parameter")
			return filter, false
		}
		filter.MaxPrice = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return filter, false
		}
		filter.Limit = n
	}
	return filter, true
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, id string) {
	book, err := s.app.GetBook(id)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to fetch book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request, fetch func() ([]string, error), fallback string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	values, err := fetch()
	if err != nil {
		s.writeAppError(w, r, err, fallback)
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var input app.BookInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	book, err := s.app.CreateBook(input)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to create book")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Book created successfully",
		"book":    book,
	})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, id string) {
	var patch app.BookPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	book, err := s.app.UpdateBook(id, patch)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to update book")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book updated successfully",
		"book":    book,
	})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, id string) {
	book, err := s.app.DeleteBook(id)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to delete book")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book deleted successfully",
		"book":    book,
	})
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCoverBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A cover image file is required")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	book, err := s.app.AttachCover(r.Context(), id, header.Filename, contentType, file, header.Size)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to upload cover")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cover uploaded successfully",
		"book":    book,
	})
}

// authorization helpers

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return domain.User{}, false
	}
	user, err := s.app.CurrentUser(token)
	if err != nil {
		// a token for a deleted account is treated the same as a bad token;
		// anything else is a backend failure, not an auth failure
		if errors.Is(err, app.ErrInvalidToken) || errors.Is(err, app.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, app.ErrInvalidToken.Error())
		} else {
			s.writeAppError(w, r, err, "Failed to authenticate request")
		}
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) requireEditor(w http.ResponseWriter, r *http.Request) bool {
	user, ok := s.authorize(w, r)
	if !ok {
		return false
	}
	if !user.Role.CanEditCatalog() {
		writeError(w, http.StatusForbidden, "Editor access required")
		return false
	}
	return true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, ok := s.authorize(w, r)
	if !ok {
		return false
	}
	if user.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// writeAppError maps application errors to statuses. Unexpected errors are
// logged with detail and reported to the client only as the fallback message.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrFieldsRequired),
		errors.Is(err, app.ErrBookFieldsRequired),
		errors.Is(err, app.ErrInvalidBookFields),
		errors.Is(err, app.ErrUnsupportedCoverType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrCoverStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
