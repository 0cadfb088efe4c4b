// Package codec implements the framing and serialization contract between a
// client dispatcher and a sandbox worker: a 4-byte big-endian length prefix
// followed by the payload, on both the control channel and the stream
// channel. Control-channel payloads are msgpack; stream-channel payloads are
// raw text bytes.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes a length-prefixed frame. payload may be empty.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("codec: write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("codec: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, tolerating partial reads via
// io.ReadFull the way a stream socket demands.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, nil
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("codec: read frame payload: %w", err)
	}
	return payload, nil
}

// FrameWriter adapts an io.Writer into one that frames every Write call as
// its own message - used by the worker to forward captured stdout/stderr
// chunks over the stream channel. Framing errors are swallowed: a broken
// stream connection must never fail the call itself.
type FrameWriter struct {
	Conn io.Writer
}

func (f *FrameWriter) Write(p []byte) (int, error) {
	_ = WriteFrame(f.Conn, p)
	return len(p), nil
}
