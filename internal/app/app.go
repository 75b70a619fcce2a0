package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookmarket/internal/store"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/storage"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	// Optional pre-built dependencies, used by tests and the seeder.
	Store    store.Store
	Sessions store.SessionStore
	Covers   storage.CoverStore
}

// App wires the credential store, catalog store, sessions and cover storage
// behind the operations the HTTP layer exposes.
type App struct {
	store    store.Store
	sessions store.SessionStore
	covers   storage.CoverStore
}

// New constructs the application. When Store/Sessions are not supplied they
// are built from DatabaseURL and JWTSecret; the token denylist runs on Redis
// when RedisAddr is set and in-process otherwise.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.TokenTTL, revoker)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
		covers:   cfg.Covers,
	}, nil
}

// Register creates an account with role user and issues a token.
func (a *App) Register(username, email, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return domain.User{}, "", ErrFieldsRequired
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	if _, exists, err := a.store.GetUserByUsername(username); err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, "", ErrUsernameTaken
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID, user.Role)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a token. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID, user.Role)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// VerifyToken returns the identity a valid token encodes.
func (a *App) VerifyToken(token string) (domain.Identity, error) {
	identity, err := a.sessions.IdentityFromToken(token)
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	return identity, nil
}

// CurrentUser verifies the token and loads the account it refers to.
// A valid token for a deleted account yields ErrUserNotFound.
func (a *App) CurrentUser(token string) (domain.User, error) {
	identity, err := a.VerifyToken(token)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(identity.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// InvalidateToken puts the token on the denylist until it expires. Tokens
// that fail verification yield ErrInvalidToken.
func (a *App) InvalidateToken(token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return ErrInvalidToken
	}
	return nil
}
