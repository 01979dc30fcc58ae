package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONFile persists the registry as {"users":[{"username","passwordHash"}]}.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend writing to path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

type registryFile struct {
	Users *[]json.RawMessage `json:"users"`
}

type userRecord struct {
	Username     *string `json:"username"`
	PasswordHash *string `json:"passwordHash"`
	// Older registries stored the hash under pw_hash.
	LegacyHash *string `json:"pw_hash"`
}

func (j *JSONFile) Load() ([]User, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	var reg registryFile
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRegistry, j.path, err)
	}
	if reg.Users == nil {
		return nil, fmt.Errorf("%w: %s: missing users list", ErrInvalidRegistry, j.path)
	}

	users := make([]User, 0, len(*reg.Users))
	for i, raw := range *reg.Users {
		var rec userRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("skipping malformed user record", "index", i, "err", err)
			continue
		}
		hash := rec.PasswordHash
		if hash == nil {
			hash = rec.LegacyHash
		}
		if rec.Username == nil || hash == nil {
			slog.Warn("skipping incomplete user record", "index", i)
			continue
		}
		users = append(users, User{Username: *rec.Username, PasswordHash: *hash})
	}
	return users, nil
}

// Save writes the registry to a temporary file and renames it into place.
func (j *JSONFile) Save(users []User) error {
	if users == nil {
		users = []User{}
	}
	data, err := json.MarshalIndent(struct {
		Users []User `json:"users"`
	}{users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(j.path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("replacing %s: %w", j.path, err)
	}
	return nil
}

func (j *JSONFile) Close() error { return nil }
