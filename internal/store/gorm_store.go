package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookmarket/pkg/domain"
)

const migrateLockID int64 = 52110452

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash", "role"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DeleteAllUsers wipes the credential store. Seeder use only.
func (s *GormStore) DeleteAllUsers() error {
	return s.db.Where("1 = 1").Delete(&UserModel{}).Error
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "author", "isbn", "published_year", "genre", "price",
			"description", "pages", "publisher", "language", "rating", "stock", "image",
		}),
	}).Create(&model).Error
}

// ListBooks returns books matching the filter plus the full match count.
// All supplied filters combine with AND; the search term ORs across fields.
func (s *GormStore) ListBooks(filter domain.BookFilter) ([]domain.Book, int, error) {
	var total int64
	if err := s.filtered(filter).Model(&BookModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	var models []BookModel
	if err := s.filtered(filter).Order("created_at ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, int(total), nil
}

func (s *GormStore) filtered(filter domain.BookFilter) *gorm.DB {
	tx := s.db.Session(&gorm.Session{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		tx = tx.Where(
			"title ILIKE ? OR author ILIKE ? OR description ILIKE ? OR genre ILIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if filter.Author != "" {
		tx = tx.Where("author ILIKE ?", "%"+filter.Author+"%")
	}
	if filter.Genre != "" {
		// anchored match, unlike the substring filters above
		tx = tx.Where("LOWER(genre) = LOWER(?)", filter.Genre)
	}
	if filter.Year != 0 {
		tx = tx.Where("published_year = ?", filter.Year)
	}
	if filter.MinPrice > 0 {
		tx = tx.Where("price >= ?", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		tx = tx.Where("price <= ?", filter.MaxPrice)
	}
	return tx
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes a book by ID.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// DeleteAllBooks wipes the catalog. Seeder use only.
func (s *GormStore) DeleteAllBooks() error {
	return s.db.Where("1 = 1").Delete(&BookModel{}).Error
}

// DistinctGenres returns the sorted set of non-empty genres.
func (s *GormStore) DistinctGenres() ([]string, error) {
	return s.distinctColumn("genre")
}

// DistinctAuthors returns the sorted set of non-empty authors.
func (s *GormStore) DistinctAuthors() ([]string, error) {
	return s.distinctColumn("author")
}

func (s *GormStore) distinctColumn(column string) ([]string, error) {
	var values []string
	err := s.db.Model(&BookModel{}).
		Distinct(column).
		Where(column+" <> ''").
		Order(column + " ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, err
	}
	return values, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		PublishedYear: b.PublishedYear,
		Genre:         b.Genre,
		Price:         b.Price,
		Description:   b.Description,
		Pages:         b.Pages,
		Publisher:     b.Publisher,
		Language:      b.Language,
		Rating:        b.Rating,
		Stock:         b.Stock,
		Image:         b.Image,
		CreatedAt:     b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Author:        m.Author,
		ISBN:          m.ISBN,
		PublishedYear: m.PublishedYear,
		Genre:         m.Genre,
		Price:         m.Price,
		Description:   m.Description,
		Pages:         m.Pages,
		Publisher:     m.Publisher,
		Language:      m.Language,
		Rating:        m.Rating,
		Stock:         m.Stock,
		Image:         m.Image,
		CreatedAt:     m.CreatedAt,
	}
}
