package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookmarket/pkg/domain"
)

const defaultSessionTTL = 7 * 24 * time.Hour

var defaultJWTLeeway = 30 * time.Second

// JWTSessionStore issues and validates HS256 bearer tokens. Tokens carry the
// user ID as subject plus a role claim; the payload is signed, not encrypted.
// Validity is signature + expiry, with an optional revocation denylist keyed
// by jti.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	leeway  time.Duration
	revoker TokenRevoker
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a session store signing with the given secret.
// revoker may be nil, in which case tokens stay valid until expiry.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker) (*JWTSessionStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTSessionStore{
		secret:  []byte(secret),
		ttl:     ttl,
		leeway:  defaultJWTLeeway,
		revoker: revoker,
	}, nil
}

// NewSession creates a signed token for the user.
func (s *JWTSessionStore) NewSession(userID string, role domain.UserRole) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IdentityFromToken validates a token and returns the identity it encodes.
func (s *JWTSessionStore) IdentityFromToken(token string) (domain.Identity, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return domain.Identity{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return domain.Identity{}, err
		}
		if revoked {
			return domain.Identity{}, errors.New("token revoked")
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Identity{}, errors.New("token subject missing")
	}
	return domain.Identity{
		UserID: claims.Subject,
		Role:   domain.UserRole(claims.Role),
	}, nil
}

// DeleteSession revokes the token until it expires. Tokens that do not
// verify are rejected. Without a revoker a valid token simply ages out.
func (s *JWTSessionStore) DeleteSession(token string) error {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return err
	}
	if s.revoker == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revoker.Revoke(claims.ID, ttl)
}

func (s *JWTSessionStore) parseAndVerify(token string) (sessionClaims, error) {
	claims := sessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
