package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Frame type tags. DATA is reserved for file content transfer and is not
// consumed by any command handler yet.
const (
	FrameCommand byte = 0x00
	FrameData    byte = 0x01
)

// HeaderSize is the fixed size of a frame header on the wire.
const HeaderSize = 5

// DefaultMaxPayload caps the payload a reader buffers for a single frame.
const DefaultMaxPayload uint32 = 16 * 1024 * 1024 // 16 MB

var (
	// ErrFrameTooLarge is returned by ReadFrame after an oversized payload was
	// drained from the stream. The stream is still aligned on a frame boundary.
	ErrFrameTooLarge = errors.New("frame payload too large")

	// ErrPayloadTooLarge is returned when a payload cannot be described by the
	// 32-bit length field.
	ErrPayloadTooLarge = errors.New("payload exceeds 32-bit length field")
)

// Frame represents a wire-protocol frame with a type byte and payload.
// Wire format: [type:u8][length:u32 LE][payload]
type Frame struct {
	Type    byte
	Payload []byte
}

// TypeName returns a readable name for a frame type tag.
func TypeName(t byte) string {
	switch t {
	case FrameCommand:
		return "COMMAND"
	case FrameData:
		return "DATA"
	default:
		return fmt.Sprintf("0x%02x", t)
	}
}

// EncodeHeader writes the 5-byte header for a payload of length n into dst.
func EncodeHeader(dst []byte, frameType byte, n uint32) {
	dst[0] = frameType
	binary.LittleEndian.PutUint32(dst[1:HeaderSize], n)
}

// DecodeHeader parses a 5-byte header.
func DecodeHeader(src []byte) (frameType byte, n uint32) {
	return src[0], binary.LittleEndian.Uint32(src[1:HeaderSize])
}

// Encode returns the framed bytes (header followed by payload) in one buffer,
// ready to be handed to a single Write call.
func Encode(frameType byte, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+len(payload))
	EncodeHeader(buf, frameType, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// ReadFrame reads a single frame from the reader. A clean end of stream before
// any header byte is reported as io.EOF; a stream that ends mid-frame is
// reported as io.ErrUnexpectedEOF.
//
// Payloads longer than maxPayload are read and discarded, and ReadFrame
// returns a frame with a nil payload together with an error wrapping
// ErrFrameTooLarge. A maxPayload of 0 disables the limit.
func ReadFrame(r io.Reader, maxPayload uint32) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading frame header: %w", err)
	}

	frameType, length := DecodeHeader(header[:])

	if maxPayload > 0 && length > maxPayload {
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, fmt.Errorf("discarding oversized payload: %w", err)
		}
		return &Frame{Type: frameType}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, length, maxPayload)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading frame payload: %w", err)
		}
	}
	return &Frame{Type: frameType, Payload: payload}, nil
}

// WriteFrame writes a single frame to the writer with one Write call.
func WriteFrame(w io.Writer, f *Frame) error {
	buf, err := Encode(f.Type, f.Payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
