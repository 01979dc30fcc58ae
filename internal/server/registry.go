package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/matozelenak/minidrive/internal/connection"
	"github.com/matozelenak/minidrive/internal/session"
)

func (s *Server) add(sess *session.Session, conn *connection.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = &entry{sess: sess, conn: conn}
}

// SessionCount returns the number of sessions in the registry, including
// dead ones the reaper has not removed yet.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Reap removes registry entries whose connection has terminated and returns
// how many were removed.
func (s *Server) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.conn.Dead() {
			delete(s.sessions, id)
			removed++
		}
	}
	slog.Debug("session sweep", "removed", removed, "sessions", len(s.sessions))
	return removed
}

func (s *Server) reapLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}
