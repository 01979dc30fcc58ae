package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite persists the registry in an embedded SQLite database. It uses
// modernc.org/sqlite which is pure Go (no CGO).
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`)
	return err
}

// Load returns all users in registration order. An empty table is a valid,
// empty registry.
func (s *SQLite) Load() ([]User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT username, password_hash FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.PasswordHash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Save replaces the table contents with users in one transaction. Rows that
// are unchanged keep their original creation time.
func (s *SQLite) Save(users []User) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make([]any, 0, len(users))
	now := time.Now().UTC()
	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
			u.Username, u.PasswordHash, now,
		); err != nil {
			return fmt.Errorf("saving user %s: %w", u.Username, err)
		}
		keep = append(keep, u.Username)
	}

	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("clearing users: %w", err)
		}
	} else {
		placeholders := "?"
		for i := 1; i < len(keep); i++ {
			placeholders += ",?"
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username NOT IN (`+placeholders+`)`, keep...); err != nil {
			return fmt.Errorf("pruning users: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
