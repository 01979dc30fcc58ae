// Package server owns the listening endpoints, the credential store and the
// registry of live sessions, and runs the periodic reaper.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matozelenak/minidrive/internal/auth"
	"github.com/matozelenak/minidrive/internal/config"
	"github.com/matozelenak/minidrive/internal/connection"
	"github.com/matozelenak/minidrive/internal/fsops"
	"github.com/matozelenak/minidrive/internal/sandbox"
	"github.com/matozelenak/minidrive/internal/session"
)

// Directory names below the server root.
const (
	PublicDirName   = "_public"
	UserDataDirName = "user_data"
)

type entry struct {
	sess *session.Session
	conn *connection.Conn
}

// Server is the MiniDrive daemon.
type Server struct {
	root string
	cfg  *config.Config
	fs   fsops.FS

	// credMu serializes every use of store.
	credMu sync.Mutex
	store  *auth.Store

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	running  bool
	ln       net.Listener
	wsLn     net.Listener
	wsSrv    *http.Server
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a server rooted at root. A nil cfg means config.Default().
func New(root string, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		root:     root,
		cfg:      cfg,
		fs:       fsops.OS{},
		sessions: make(map[uuid.UUID]*entry),
	}
}

// Root returns the absolute server root once Start has run.
func (s *Server) Root() string { return s.root }

// PublicRoot is the sandbox root of PUBLIC sessions.
func (s *Server) PublicRoot() string { return filepath.Join(s.root, PublicDirName) }

// PrivateRoot is the sandbox root of username.
func (s *Server) PrivateRoot(username string) string {
	return filepath.Join(s.root, UserDataDirName, username)
}

func (s *Server) dataDir() string { return filepath.Join(s.root, config.DataDirName) }

// Start prepares the directory layout, loads the credential store, binds the
// listeners and starts accepting. Calling Start on a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	s.root = root
	if err := s.prepareLayout(); err != nil {
		return err
	}

	store, err := s.openStore()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		store.Close()
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}
	slog.Info("listening", "addr", ln.Addr().String(), "root", s.root)

	var wsLn net.Listener
	if s.cfg.Server.WSListen != "" {
		wsLn, err = net.Listen("tcp", s.cfg.Server.WSListen)
		if err != nil {
			ln.Close()
			store.Close()
			return fmt.Errorf("listening on %s: %w", s.cfg.Server.WSListen, err)
		}
		slog.Info("websocket server listening", "addr", wsLn.Addr().String())
	}

	if s.cfg.Sandbox.Landlock {
		if err := sandbox.Confine(s.root); err != nil {
			slog.Warn("landlock confinement unavailable", "err", err)
		} else {
			slog.Info("filesystem access confined", "root", s.root)
		}
	}

	s.credMu.Lock()
	s.store = store
	s.credMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.ln = ln
	s.wsLn = wsLn
	s.running = true

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()
	go func() {
		defer s.wg.Done()
		s.reapLoop(ctx, s.cfg.Server.ReapInterval.Duration)
	}()
	if wsLn != nil {
		wsSrv := s.newWSServer()
		s.wsSrv = wsSrv
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := wsSrv.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("websocket server error", "err", err)
			}
		}()
	}
	return nil
}

func (s *Server) prepareLayout() error {
	dirs := []struct {
		path string
		perm os.FileMode
	}{
		{s.root, 0o755},
		{s.dataDir(), 0o700},
		{s.PublicRoot(), 0o755},
		{filepath.Join(s.root, UserDataDirName), 0o755},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return fmt.Errorf("creating %s: %w", d.path, err)
		}
	}
	return nil
}

func (s *Server) openStore() (*auth.Store, error) {
	backend, err := auth.OpenBackend(s.cfg.Storage.Backend, s.dataDir())
	if err != nil {
		return nil, fmt.Errorf("opening user database: %w", err)
	}
	params := auth.DefaultParams
	params.Time = s.cfg.Auth.Argon2Time
	params.MemoryKiB = s.cfg.Auth.Argon2MemoryKiB
	params.Threads = s.cfg.Auth.Argon2Threads

	store := auth.NewStore(backend, params)
	if err := store.Load(); err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// Stop persists the credential store, stops accepting and cancels the
// reaper. Established connections keep running until they disconnect.
// Calling Stop on a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.ln.Close()
	wsSrv := s.wsSrv
	s.wsSrv = nil
	s.mu.Unlock()

	if wsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = wsSrv.Shutdown(shutdownCtx)
		cancel()
	}

	s.wg.Wait()

	s.credMu.Lock()
	defer s.credMu.Unlock()
	saveErr := s.store.Save()
	if err := s.store.Close(); err != nil {
		slog.Warn("closing user database", "err", err)
	}
	s.store = nil
	slog.Info("server stopped")
	return saveErr
}

// Run starts the server and blocks until ctx is cancelled, then stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Addr returns the TCP listener address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.ln.Addr()
}

// WSAddr returns the WebSocket listener address, or nil when disabled.
func (s *Server) WSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept error", "err", err)
			// Back off on persistent errors such as EMFILE.
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		go s.serve(conn)
	}
}

func (s *Server) newWSServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := connection.AcceptWebSocket(r.Context(), w, r, s.cfg.Server.MaxPayload)
		if err != nil {
			slog.Error("websocket accept error", "err", err)
			return
		}
		s.serve(conn)
	})
	return &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

// serve runs one connection to completion.
func (s *Server) serve(rw io.ReadWriteCloser) {
	conn := connection.New(rw, connection.WithMaxPayload(s.cfg.Server.MaxPayload))
	sess := session.New(s, conn,
		session.WithFS(s.fs),
		session.WithResolveSymlinks(s.cfg.Sandbox.ResolveSymlinks),
		session.WithRemote(conn.RemoteAddr()),
	)
	s.add(sess, conn)
	slog.Info("client connected", "remote", conn.RemoteAddr(), "session", sess.ID().String())
	conn.Run(sess)
}
