package session

import (
	"errors"

	"github.com/matozelenak/minidrive/internal/auth"
	"github.com/matozelenak/minidrive/internal/fsops"
	"github.com/matozelenak/minidrive/internal/protocol"
	"github.com/matozelenak/minidrive/internal/sandbox"
)

func (s *Session) handleAuth(req *protocol.Request) (*protocol.Reply, error) {
	if s.mode != NotAuthenticated {
		return nil, protocol.Errorf(protocol.AlreadyAuthenticated, "")
	}
	if !req.HasMode {
		return nil, protocol.Missing("mode")
	}

	switch req.Mode {
	case protocol.ModePublic:
		if err := s.fs.CreateDir(s.host.PublicRoot(), true); err != nil {
			s.logger().Error("creating public directory", "err", err)
			return nil, protocol.Errorf(protocol.FSError, "failed to create public directory")
		}
		s.mode = Public
		s.workingDir = ""
		s.logger().Info("authenticated as public user")
		return s.ok("running as public user", nil), nil

	case protocol.ModePrivate:
		creds, err := req.Args.Strings("username", "password")
		if err != nil {
			return nil, err
		}
		username, password := creds[0], creds[1]
		if auth.ValidateUsername(username) != nil || !s.host.UserExists(username) {
			return nil, protocol.Errorf(protocol.UserNotFound, "%s", username)
		}
		if !s.host.VerifyPassword(username, password) {
			return nil, protocol.Errorf(protocol.IncorrectPassword, "")
		}
		if err := s.fs.CreateDir(s.host.PrivateRoot(username), true); err != nil {
			s.logger().Error("creating user directory", "user", username, "err", err)
			return nil, protocol.Errorf(protocol.FSError, "failed to create user directory")
		}
		s.mode = Private
		s.username = username
		s.workingDir = ""
		s.log.Store(s.logger().With("user", username))
		s.logger().Info("authenticated")
		return s.ok("", nil), nil

	default:
		return nil, protocol.Errorf(protocol.MissingArgument, "mode must be 'public' or 'private'")
	}
}

func (s *Session) handleRegister(req *protocol.Request) (*protocol.Reply, error) {
	creds, err := req.Args.Strings("username", "password")
	if err != nil {
		return nil, err
	}
	username := creds[0]

	err = s.host.Register(username, creds[1])
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return nil, protocol.Errorf(protocol.UserAlreadyExists, "%s", username)
	case errors.Is(err, auth.ErrInvalidUsername):
		return nil, protocol.Errorf(protocol.UserRegister, "invalid username")
	case err != nil:
		s.logger().Error("registering user", "user", username, "err", err)
		return nil, protocol.Errorf(protocol.UserRegister, "password hashing failed")
	}
	s.logger().Info("user registered", "user", username)
	return s.ok("user registered", nil), nil
}

func (s *Session) handleList(req *protocol.Request) (*protocol.Reply, error) {
	t, err := s.target(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireType(t, fsops.TypeDirectory, "target is not a directory"); err != nil {
		return nil, err
	}
	entries, err := s.fs.ListEntries(t.abs)
	if err != nil {
		s.logger().Error("listing directory", "path", t.display, "err", err)
		return nil, protocol.Errorf(protocol.FSError, "could not list directory: %s", t.display)
	}
	s.logger().Info("listing", "path", t.display, "entries", len(entries))
	return s.ok(t.display, map[string]any{"files": entries}), nil
}

func (s *Session) handleRemove(req *protocol.Request) (*protocol.Reply, error) {
	t, err := s.target(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireType(t, fsops.TypeRegular, "target is not a regular file"); err != nil {
		return nil, err
	}
	if err := s.fs.RemoveFile(t.abs); err != nil {
		s.logger().Error("removing file", "path", t.display, "err", err)
		return nil, protocol.Errorf(protocol.FSError, "could not remove file: %s", t.display)
	}
	return s.ok("file removed", nil), nil
}

func (s *Session) handleCD(req *protocol.Request) (*protocol.Reply, error) {
	t, err := s.target(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireType(t, fsops.TypeDirectory, "target is not a directory"); err != nil {
		return nil, err
	}
	rel, err := sandbox.Rel(t.root, t.abs)
	if err != nil {
		return nil, err
	}
	s.workingDir = rel
	s.logger().Info("changed working directory", "path", t.display)
	return s.ok("", nil), nil
}

func (s *Session) handleMkdir(req *protocol.Request) (*protocol.Reply, error) {
	t, err := s.target(req)
	if err != nil {
		return nil, err
	}
	exists, err := s.fs.Exists(t.abs)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, protocol.Errorf(protocol.TargetAlreadyExists, "%s", t.display)
	}
	if err := s.fs.CreateDir(t.abs, false); err != nil {
		s.logger().Error("creating directory", "path", t.display, "err", err)
		return nil, protocol.Errorf(protocol.FSError, "failed to create directory: %s", t.display)
	}
	return s.ok("", nil), nil
}

func (s *Session) handleRmdir(req *protocol.Request) (*protocol.Reply, error) {
	t, err := s.target(req)
	if err != nil {
		return nil, err
	}
	if t.abs == t.root {
		return nil, protocol.Errorf(protocol.AccessDenied, "cannot remove the root directory")
	}
	if err := s.requireType(t, fsops.TypeDirectory, "target is not a directory"); err != nil {
		return nil, err
	}
	if err := s.fs.RemoveDirRecursive(t.abs); err != nil {
		s.logger().Error("removing directory", "path", t.display, "err", err)
		return nil, protocol.Errorf(protocol.FSError, "failed to remove directory: %s", t.display)
	}
	// The working directory may have been inside the removed tree.
	if cwd, _ := sandbox.Resolve(t.root, s.workingDir, ""); sandbox.Within(t.abs, cwd) {
		s.workingDir = ""
	}
	return s.ok("", nil), nil
}

// ok builds a success reply carrying the current working directory.
func (s *Session) ok(message string, data map[string]any) *protocol.Reply {
	return protocol.OK(message, data, s.workingDir)
}
