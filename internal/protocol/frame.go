package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Terminator ends every frame on the wire.
const Terminator byte = 0x00

// trailing bytes stripped from a decoded frame
const trimSet = "\r\n\x00"

// Encode builds the wire form of a command: command, a space, parameters
// and the NUL terminator. The space is present even when parameters is
// empty.
func Encode(command, parameters string) []byte {
	buf := make([]byte, 0, len(command)+len(parameters)+2)
	buf = append(buf, command...)
	buf = append(buf, ' ')
	buf = append(buf, parameters...)
	return append(buf, Terminator)
}

// EncodeRaw terminates a line that is already in wire form.
func EncodeRaw(line string) []byte {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	return append(buf, Terminator)
}

// ReadFrame reads a single frame from r, one byte at a time, until the
// NUL terminator. The terminator is consumed and not returned, and any
// trailing CR, LF or NUL bytes are stripped from the result.
func ReadFrame(r io.ByteReader) (string, error) {
	var b strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				err = io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("failed to read frame: %w", err)
		}
		if c == Terminator {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), trimSet), nil
}
