// Package connection implements the per-connection message framer: a read
// loop that decodes frames and hands them to a Handler one at a time, and a
// single-flight writer that drains a FIFO queue of outgoing frames.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/matozelenak/minidrive/internal/protocol"
)

// ErrClosed is reported when the connection was closed locally.
var ErrClosed = errors.New("connection closed")

// Handler receives the events of one Conn. HandleFrame and HandleOversize
// are called sequentially from the read goroutine, so a handler never sees
// two frames at once. HandleClose runs on whichever goroutine hits the first
// error (the reader, the writer, or a caller of Close) and may overlap a
// HandleFrame call still in progress.
type Handler interface {
	// HandleFrame is called for every decoded frame.
	HandleFrame(f *protocol.Frame)
	// HandleOversize is called when a frame exceeded the payload limit and
	// was discarded. The stream remains usable.
	HandleOversize(frameType byte, err error)
	// HandleClose is called exactly once with the first read or write error
	// (io.EOF for a clean disconnect). Once the connection is dead the read
	// loop starts no further HandleFrame or HandleOversize calls.
	HandleClose(err error)
}

// Option configures a Conn.
type Option func(*Conn)

// WithMaxPayload sets the largest payload the reader buffers. 0 disables the limit.
func WithMaxPayload(n uint32) Option {
	return func(c *Conn) { c.maxPayload = n }
}

// WithRemote overrides the remote address used in logs.
func WithRemote(addr string) Option {
	return func(c *Conn) { c.remote = addr }
}

// Conn frames messages over a duplex byte stream.
type Conn struct {
	rw         io.ReadWriteCloser
	maxPayload uint32
	remote     string

	mu      sync.Mutex
	queue   [][]byte
	handler Handler

	wake chan struct{}
	done chan struct{}

	dead    atomic.Bool
	err     error
	errOnce sync.Once
	started atomic.Bool
}

// New wraps rw. Frames queued with Send before Run are written once Run starts.
func New(rw io.ReadWriteCloser, opts ...Option) *Conn {
	c := &Conn{
		rw:         rw,
		maxPayload: protocol.DefaultMaxPayload,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	if nc, ok := rw.(net.Conn); ok && nc.RemoteAddr() != nil {
		c.remote = nc.RemoteAddr().String()
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RemoteAddr returns the peer address, if known.
func (c *Conn) RemoteAddr() string { return c.remote }

// Dead reports whether the connection has terminated.
func (c *Conn) Dead() bool { return c.dead.Load() }

// Err returns the error that terminated the connection, or nil.
func (c *Conn) Err() error {
	if !c.dead.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the connection terminates.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Run starts the writer and reads frames until the stream fails, delivering
// them to h. It blocks for the lifetime of the connection and must be called
// at most once.
func (c *Conn) Run(h Handler) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()

	go c.writeLoop()
	c.readLoop(h)
}

func (c *Conn) readLoop(h Handler) {
	for {
		f, err := protocol.ReadFrame(c.rw, c.maxPayload)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) && !c.dead.Load() {
				h.HandleOversize(f.Type, err)
				continue
			}
			c.fail(err)
			return
		}
		if c.dead.Load() {
			return
		}
		h.HandleFrame(f)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			buf := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()

			if _, err := c.rw.Write(buf); err != nil {
				c.fail(fmt.Errorf("writing frame: %w", err))
				return
			}
		}
	}
}

// Send frames payload and appends it to the write queue. It never blocks on
// the network and is safe for concurrent use; frames reach the wire in the
// order Send was called.
func (c *Conn) Send(frameType byte, payload []byte) error {
	buf, err := protocol.Encode(frameType, payload)
	if err != nil {
		return err
	}
	if c.dead.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	c.queue = append(c.queue, buf)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// SendReply marshals a reply and queues it as a COMMAND frame.
func (c *Conn) SendReply(r *protocol.Reply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	return c.Send(protocol.FrameCommand, data)
}

// Close terminates the connection. Queued frames that were not yet written
// are dropped.
func (c *Conn) Close() error {
	c.fail(ErrClosed)
	return nil
}

// fail records the first error, marks the connection dead, releases the
// stream and notifies the handler. Later calls are no-ops.
func (c *Conn) fail(err error) {
	c.errOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.queue = nil
		h := c.handler
		c.mu.Unlock()

		c.dead.Store(true)
		close(c.done)
		_ = c.rw.Close()

		if h != nil {
			h.HandleClose(err)
		}
	})
}
