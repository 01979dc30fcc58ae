// Package client is the MiniDrive client: endpoint parsing, a synchronous
// request/response connection and the interactive shell built on it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/matozelenak/minidrive/internal/connection"
	"github.com/matozelenak/minidrive/internal/protocol"
)

// Endpoint describes where to connect: a TCP address or a WebSocket URL.
// An empty Username means the client runs as the public user.
type Endpoint struct {
	Username string
	Addr     string // host:port for TCP (empty if URL is set)
	URL      string // ws:// or wss:// URL
}

// Public reports whether the endpoint carries no username.
func (e Endpoint) Public() bool { return e.Username == "" }

func (e Endpoint) String() string {
	if e.URL != "" {
		return e.URL
	}
	if e.Username != "" {
		return e.Username + "@" + e.Addr
	}
	return e.Addr
}

// ParseEndpoint parses "[username@]host:port" or a ws:// / wss:// URL whose
// userinfo, if any, names the user.
func ParseEndpoint(s string) (Endpoint, error) {
	if strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://") {
		u, err := url.Parse(s)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
		}
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", s)
		}
		var ep Endpoint
		if u.User != nil {
			ep.Username = u.User.Username()
			u.User = nil
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = "/ws"
		}
		ep.URL = u.String()
		return ep, nil
	}

	var ep Endpoint
	hostPort := s
	if at := strings.LastIndex(s, "@"); at >= 0 {
		ep.Username = s[:at]
		hostPort = s[at+1:]
		if ep.Username == "" {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: empty username", s)
		}
	}
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", s)
	}
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: bad port %q", s, port)
	}
	ep.Addr = net.JoinHostPort(host, port)
	return ep, nil
}

// Connect opens the byte stream to the endpoint.
func (e Endpoint) Connect(ctx context.Context) (net.Conn, error) {
	if e.URL != "" {
		return connection.DialWebSocket(ctx, e.URL)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.Addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", e.Addr, err)
	}
	return conn, nil
}

// ErrUnexpectedFrame is returned when the server answers with a non-COMMAND frame.
var ErrUnexpectedFrame = errors.New("unexpected frame from server")

// Client sends one request at a time and waits for its reply. It tracks the
// working directory reported by the server.
type Client struct {
	rw io.ReadWriteCloser

	mu         sync.Mutex
	workingDir string
}

// New wraps an established stream.
func New(rw io.ReadWriteCloser) *Client {
	return &Client{rw: rw}
}

// Dial connects to the endpoint.
func Dial(ctx context.Context, e Endpoint) (*Client, error) {
	conn, err := e.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.rw.Close() }

// WorkingDir returns the last working directory reported by the server.
func (c *Client) WorkingDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workingDir
}

// Do sends a request and returns the server's reply. A FAIL reply is not an
// error here; transport and decoding failures are.
func (c *Client) Do(req *protocol.Outgoing) (*protocol.Reply, error) {
	payload, err := req.Marshal()
	if err != nil {
		return nil, err
	}
	return c.DoRaw(payload)
}

// DoRaw sends payload as a COMMAND frame and returns the reply.
func (c *Client) DoRaw(payload []byte) (*protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.WriteFrame(c.rw, &protocol.Frame{Type: protocol.FrameCommand, Payload: payload}); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	for {
		f, err := protocol.ReadFrame(c.rw, protocol.DefaultMaxPayload)
		if err != nil {
			return nil, fmt.Errorf("reading reply: %w", err)
		}
		if f.Type == protocol.FrameData {
			continue
		}
		if f.Type != protocol.FrameCommand {
			return nil, fmt.Errorf("%w: type 0x%02x", ErrUnexpectedFrame, f.Type)
		}
		reply, err := protocol.DecodeReply(f.Payload)
		if err != nil {
			return nil, err
		}
		if reply.OK() && reply.Uwd != nil {
			c.workingDir = *reply.Uwd
		}
		return reply, nil
	}
}

// call runs a request and turns FAIL replies into *protocol.Error.
func (c *Client) call(req *protocol.Outgoing) (*protocol.Reply, error) {
	reply, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return reply, err
	}
	return reply, nil
}

func pathRequest(cmd, path string) *protocol.Outgoing {
	return &protocol.Outgoing{Cmd: cmd, Args: map[string]string{"path": path}}
}

// AuthPublic switches the session to the public sandbox.
func (c *Client) AuthPublic() error {
	_, err := c.call(&protocol.Outgoing{Cmd: protocol.CmdAuth, Mode: protocol.ModePublic})
	return err
}

// AuthPrivate logs in as username.
func (c *Client) AuthPrivate(username, password string) error {
	_, err := c.call(&protocol.Outgoing{
		Cmd:  protocol.CmdAuth,
		Mode: protocol.ModePrivate,
		Args: map[string]string{"username": username, "password": password},
	})
	return err
}

// Register creates a new user account.
func (c *Client) Register(username, password string) error {
	_, err := c.call(&protocol.Outgoing{
		Cmd:  protocol.CmdRegister,
		Args: map[string]string{"username": username, "password": password},
	})
	return err
}

// List returns the entries of the directory at path.
func (c *Client) List(path string) ([]protocol.Entry, error) {
	reply, err := c.call(pathRequest(protocol.CmdList, path))
	if err != nil {
		return nil, err
	}
	return reply.DecodeEntries()
}

// CD changes the working directory and returns the new one.
func (c *Client) CD(path string) (string, error) {
	reply, err := c.call(pathRequest(protocol.CmdCD, path))
	if err != nil {
		return "", err
	}
	return reply.WorkingDir(), nil
}

// Mkdir creates a directory.
func (c *Client) Mkdir(path string) error {
	_, err := c.call(pathRequest(protocol.CmdMkdir, path))
	return err
}

// Rmdir removes a directory and its contents.
func (c *Client) Rmdir(path string) error {
	_, err := c.call(pathRequest(protocol.CmdRmdir, path))
	return err
}

// Remove deletes a regular file.
func (c *Client) Remove(path string) error {
	_, err := c.call(pathRequest(protocol.CmdRemove, path))
	return err
}

// Code extracts the protocol code from an error returned by Client methods,
// or protocol.Success when err is nil. Transport errors yield ok=false.
func Code(err error) (protocol.Code, bool) {
	if err == nil {
		return protocol.Success, true
	}
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return 0, false
}
