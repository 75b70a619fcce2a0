package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost mirrors the cost the seed accounts were hashed with. Raising it
// invalidates no existing hashes; bcrypt encodes the cost per hash.
const bcryptCost = 12

// HashPassword returns a salted bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword validates a password against a stored bcrypt hash.
func CheckPassword(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
