package transport

import (
	"net"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/colinhart/tuplebox/internal/codec"
)

// readStream relays framed stdout/stderr chunks from a worker onto this
// process's own stdout until the stream channel closes, the client half of
// the worker's os.Pipe-to-frame forwarding.
func readStream(conn net.Conn) {
	for {
		payload, err := codec.ReadFrame(conn)
		if err != nil {
			return
		}
		if len(payload) == 0 {
			continue
		}
		os.Stdout.WriteString(decodeUTF8Replace(payload))
	}
}

// decodeUTF8Replace decodes b as UTF-8, substituting U+FFFD for any invalid
// byte sequence rather than failing - the Go analogue of Python's
// bytes.decode(errors="replace").
func decodeUTF8Replace(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
