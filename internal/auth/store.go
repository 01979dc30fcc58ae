// Package auth implements the credential store: an in-memory user registry
// with salted argon2id password hashes and a pluggable persistence backend.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
)

var (
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned by Register for names that cannot be
	// used as a directory name.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidRegistry is returned by Load when persisted state exists but
	// does not have the expected structure.
	ErrInvalidRegistry = errors.New("invalid user registry")
)

// User is one persisted registry record.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// Backend persists the registry. Load returns an error wrapping
// fs.ErrNotExist when nothing has been persisted yet.
type Backend interface {
	Load() ([]User, error)
	Save(users []User) error
	Close() error
}

// Store is the in-memory user registry. It is not safe for concurrent use;
// callers serialize access to it.
type Store struct {
	backend Backend
	params  Params
	users   []User
}

// NewStore creates an empty store persisted through backend. Call Load
// before use.
func NewStore(backend Backend, params Params) *Store {
	return &Store{backend: backend, params: params}
}

// Load reads the persisted registry. A missing registry is initialized empty
// and persisted immediately; an unreadable or malformed one is an error.
func (s *Store) Load() error {
	slog.Info("loading user database")
	users, err := s.backend.Load()
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("user database does not exist, creating it")
		s.users = nil
		if err := s.backend.Save(s.users); err != nil {
			return fmt.Errorf("creating user database: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading user database: %w", err)
	}
	s.users = users
	slog.Info("user database loaded", "users", len(users))
	return nil
}

// Save persists the current registry.
func (s *Store) Save() error {
	slog.Info("saving user database", "users", len(s.users))
	if err := s.backend.Save(s.users); err != nil {
		return fmt.Errorf("saving user database: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Len returns the number of registered users.
func (s *Store) Len() int { return len(s.users) }

func (s *Store) find(username string) *User {
	for i := range s.users {
		if s.users[i].Username == username {
			return &s.users[i]
		}
	}
	return nil
}

// UserExists reports whether username is registered.
func (s *Store) UserExists(username string) bool {
	return s.find(username) != nil
}

// VerifyPassword reports whether password matches the stored hash for
// username. An unknown user and a wrong password both yield false.
func (s *Store) VerifyPassword(username, password string) bool {
	u := s.find(username)
	if u == nil {
		return false
	}
	ok, err := Verify(password, u.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash is unusable", "user", username, "err", err)
		return false
	}
	return ok
}

// CreateUser hashes password with a fresh salt and appends a record. It only
// fails when hashing fails.
func (s *Store) CreateUser(username, password string) error {
	hash, err := Hash(password, s.params)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	s.users = append(s.users, User{Username: username, PasswordHash: hash})
	return nil
}

// Register validates username, rejects duplicates and creates the user.
func (s *Store) Register(username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if s.UserExists(username) {
		return ErrUserExists
	}
	return s.CreateUser(username, password)
}

// ValidateUsername rejects names that are empty or that would not map to a
// single directory below the private data root.
func ValidateUsername(username string) error {
	switch {
	case username == "", username == ".", username == "..":
		return ErrInvalidUsername
	case strings.ContainsAny(username, "/\\\x00"):
		return ErrInvalidUsername
	}
	return nil
}
