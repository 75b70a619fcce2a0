package util

import "github.com/google/uuid"

// NewID returns a random identifier suitable for request correlation.
func NewID() string {
	return uuid.NewString()
}
