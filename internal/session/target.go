package session

import (
	"path/filepath"

	"github.com/matozelenak/minidrive/internal/fsops"
	"github.com/matozelenak/minidrive/internal/protocol"
	"github.com/matozelenak/minidrive/internal/sandbox"
)

// target is a client path confined to the session's sandbox.
type target struct {
	root    string
	abs     string
	display string
}

func (s *Session) root() string {
	if s.mode == Private {
		return s.host.PrivateRoot(s.username)
	}
	return s.host.PublicRoot()
}

// target checks authentication, reads the "path" argument and resolves it
// inside the sandbox. Every filesystem command starts here, so no handler
// touches the filesystem before these checks pass.
func (s *Session) target(req *protocol.Request) (target, error) {
	if s.mode == NotAuthenticated {
		return target{}, protocol.Errorf(protocol.AccessDenied, "not authenticated")
	}
	requested, err := req.Args.String("path")
	if err != nil {
		return target{}, err
	}

	root := filepath.Clean(s.root())
	abs, ok := sandbox.Resolve(root, s.workingDir, requested)
	if !ok {
		s.logger().Warn("path escapes sandbox", "path", requested)
		return target{}, protocol.Errorf(protocol.AccessDenied, "%s", requested)
	}
	if s.resolveSymlinks {
		inside, err := sandbox.Canonical(root, abs)
		if err != nil {
			s.logger().Error("canonicalizing path", "path", requested, "err", err)
			return target{}, protocol.Errorf(protocol.FSError, "filesystem error")
		}
		if !inside {
			s.logger().Warn("path escapes sandbox through a symlink", "path", requested)
			return target{}, protocol.Errorf(protocol.AccessDenied, "%s", requested)
		}
	}
	return target{root: root, abs: abs, display: sandbox.Display(root, abs)}, nil
}

// requireType fails with TARGET_NOT_FOUND when t does not exist and with
// FS_ERROR when it is not of type want.
func (s *Session) requireType(t target, want fsops.FileType, mismatch string) error {
	exists, err := s.fs.Exists(t.abs)
	if err != nil {
		return err
	}
	if !exists {
		return protocol.Errorf(protocol.TargetNotFound, "%s", t.display)
	}
	got, err := s.fs.FileType(t.abs)
	if err != nil {
		return protocol.Errorf(protocol.FSError, "cannot stat target: %s", t.display)
	}
	if got != want {
		return protocol.Errorf(protocol.FSError, "%s: %s", mismatch, t.display)
	}
	return nil
}
