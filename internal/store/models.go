package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Author        string `gorm:"not null;index"`
	ISBN          string
	PublishedYear int
	Genre         string `gorm:"not null;index"`
	Price         float64 `gorm:"not null"`
	Description   string  `gorm:"type:text"`
	Pages         int
	Publisher     string
	Language      string
	Rating        float64
	Stock         int
	Image         string
	CreatedAt     time.Time `gorm:"not null;index"`
}
