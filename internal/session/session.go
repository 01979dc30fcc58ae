// Package session implements the per-connection authentication and command
// state machine. A Session decodes COMMAND frames, dispatches them to the
// command handlers and queues exactly one reply per request.
package session

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/matozelenak/minidrive/internal/connection"
	"github.com/matozelenak/minidrive/internal/fsops"
	"github.com/matozelenak/minidrive/internal/protocol"
)

// Mode is the authentication state of a session.
type Mode int

const (
	NotAuthenticated Mode = iota
	Public
	Private
)

func (m Mode) String() string {
	switch m {
	case Public:
		return "PUBLIC"
	case Private:
		return "PRIVATE"
	default:
		return "NOT_AUTHENTICATED"
	}
}

// Credentials is the shared user registry. Implementations serialize access
// across sessions; Register checks for an existing user and creates the new
// one atomically.
type Credentials interface {
	UserExists(username string) bool
	VerifyPassword(username, password string) bool
	Register(username, password string) error
}

// Host is what a session needs from the server that owns it.
type Host interface {
	Credentials
	// PublicRoot is the sandbox root of PUBLIC sessions.
	PublicRoot() string
	// PrivateRoot is the sandbox root of a PRIVATE session for username.
	PrivateRoot(username string) string
}

// Replier queues a reply frame without blocking.
type Replier interface {
	SendReply(r *protocol.Reply) error
}

// Option configures a Session.
type Option func(*Session)

// WithFS replaces the host filesystem.
func WithFS(fsys fsops.FS) Option {
	return func(s *Session) { s.fs = fsys }
}

// WithResolveSymlinks enables the canonical containment check on every
// resolved path in addition to the lexical one.
func WithResolveSymlinks(on bool) Option {
	return func(s *Session) { s.resolveSymlinks = on }
}

// WithRemote records the peer address for logging.
func WithRemote(addr string) Option {
	return func(s *Session) { s.remote = addr }
}

// Session is the server-side state of one connection. Its mode, username and
// working directory are only touched by the goroutine delivering frames.
// HandleClose may run on another goroutine and reads only the logger and the
// closed flag.
type Session struct {
	id              uuid.UUID
	host            Host
	out             Replier
	fs              fsops.FS
	resolveSymlinks bool
	remote          string
	log             atomic.Pointer[slog.Logger]

	mode       Mode
	username   string
	workingDir string

	closed atomic.Bool
}

var _ connection.Handler = (*Session)(nil)

// New creates an unauthenticated session that answers through out.
func New(host Host, out Replier, opts ...Option) *Session {
	s := &Session{
		id:   uuid.New(),
		host: host,
		out:  out,
		fs:   fsops.OS{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log.Store(slog.With("session", s.id.String(), "remote", s.remote))
	return s
}

// ID returns the session identifier used in logs and the registry.
func (s *Session) ID() uuid.UUID { return s.id }

// Mode returns the current authentication state.
func (s *Session) Mode() Mode { return s.mode }

// Username returns the authenticated user of a PRIVATE session.
func (s *Session) Username() string { return s.username }

// WorkingDir returns the slash-separated working directory relative to the
// sandbox root; "" is the root itself.
func (s *Session) WorkingDir() string { return s.workingDir }

func (s *Session) logger() *slog.Logger { return s.log.Load() }

// Closed reports whether the underlying connection has terminated.
func (s *Session) Closed() bool { return s.closed.Load() }

// HandleFrame dispatches COMMAND frames and ignores everything else.
func (s *Session) HandleFrame(f *protocol.Frame) {
	if f.Type != protocol.FrameCommand {
		s.logger().Debug("ignoring frame", "type", protocol.TypeName(f.Type), "len", len(f.Payload))
		return
	}
	s.logger().Debug("frame received", "type", protocol.TypeName(f.Type), "len", len(f.Payload))
	s.reply(s.Handle(f.Payload))
}

// HandleOversize answers a discarded frame with a parse error.
func (s *Session) HandleOversize(frameType byte, err error) {
	s.logger().Warn("discarding oversized frame", "type", protocol.TypeName(frameType), "err", err)
	s.reply(protocol.Fail(protocol.JSONParseError, "frame too large"))
}

// HandleClose records that the connection is gone.
func (s *Session) HandleClose(err error) {
	s.closed.Store(true)
	if errors.Is(err, io.EOF) || errors.Is(err, connection.ErrClosed) {
		s.logger().Info("client disconnected")
		return
	}
	s.logger().Error("client error", "err", err)
}

func (s *Session) reply(r *protocol.Reply) {
	if err := s.out.SendReply(r); err != nil {
		s.logger().Debug("dropping reply", "err", err)
	}
}
