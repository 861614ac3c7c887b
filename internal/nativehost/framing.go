// Package nativehost speaks the browser native-messaging protocol: each
// message is a 4-byte little-endian length followed by that many bytes of
// JSON.
package nativehost

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessage caps an incoming message. Browsers send at most 64 MiB.
const MaxMessage = 64 << 20

// ErrTooLarge is returned for a length header above MaxMessage
var ErrTooLarge = errors.New("nativehost: message too large")

// ReadMessage reads one framed message. It returns io.EOF on a clean end of
// stream and io.ErrUnexpectedEOF when a frame is cut short.
func ReadMessage(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n > MaxMessage {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WriteMessage marshals v and writes it as one frame
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
