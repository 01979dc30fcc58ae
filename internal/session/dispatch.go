package session

import (
	"errors"

	"github.com/matozelenak/minidrive/internal/protocol"
)

type handlerFunc func(s *Session, req *protocol.Request) (*protocol.Reply, error)

var handlers = map[string]handlerFunc{
	protocol.CmdAuth:     (*Session).handleAuth,
	protocol.CmdRegister: (*Session).handleRegister,
	protocol.CmdList:     (*Session).handleList,
	protocol.CmdRemove:   (*Session).handleRemove,
	protocol.CmdCD:       (*Session).handleCD,
	protocol.CmdMkdir:    (*Session).handleMkdir,
	protocol.CmdRmdir:    (*Session).handleRmdir,
}

// Handle decodes one COMMAND payload, runs its handler and returns the
// reply. It never panics on malformed input and always returns a reply.
func (s *Session) Handle(payload []byte) *protocol.Reply {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		return s.failure("", err)
	}

	h, ok := handlers[req.Cmd]
	if !ok {
		return s.failure(req.Cmd, protocol.Errorf(protocol.UnknownCommand, "%s", req.Cmd))
	}

	s.logger().Info("command", "cmd", req.Cmd)
	reply, err := h(s, req)
	if err != nil {
		return s.failure(req.Cmd, err)
	}
	return reply
}

// failure converts a handler error into a FAIL reply. Errors that are not
// protocol errors come from the filesystem layer and are reported without
// host paths.
func (s *Session) failure(cmd string, err error) *protocol.Reply {
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		s.logger().Error("command failed", "cmd", cmd, "err", err)
		perr = protocol.Errorf(protocol.FSError, "filesystem error")
	}
	s.logger().Warn("command rejected", "cmd", cmd, "code", perr.Code.String(), "message", perr.Message)
	return protocol.FailFrom(perr)
}
