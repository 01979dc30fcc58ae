package server

import (
	"errors"
	"log/slog"

	"github.com/matozelenak/minidrive/internal/session"
)

var _ session.Host = (*Server)(nil)

var errStopped = errors.New("server stopped")

// UserExists reports whether username is registered.
func (s *Server) UserExists(username string) bool {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	return s.store != nil && s.store.UserExists(username)
}

// VerifyPassword checks a password against the stored hash.
func (s *Server) VerifyPassword(username, password string) bool {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	return s.store != nil && s.store.VerifyPassword(username, password)
}

// Register creates a user under the credential lock, so two sessions racing
// for the same name cannot both succeed. The registry is persisted right
// away; a failed save is logged and retried on Stop.
func (s *Server) Register(username, password string) error {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	if s.store == nil {
		return errStopped
	}
	if err := s.store.Register(username, password); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		slog.Error("persisting new user", "user", username, "err", err)
	}
	return nil
}
