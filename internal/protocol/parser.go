package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Leading tokens of well-formed frames
const (
	TokenHello = "hello"
	TokenOK    = "ok"
	TokenError = "error"
)

// Field keys found in greetings and info responses
const (
	FieldName    = "NAME"
	FieldSerial  = "SERIAL"
	FieldVersion = "VERSION"
	FieldMAC     = "mac"
)

// fileSystemPrefix marks the payload of an M20 listing
const fileSystemPrefix = "FS"

// ErrMalformedResponse is returned when a frame does not start with the
// expected token or its fields cannot be split.
var ErrMalformedResponse = errors.New("malformed response")

// File is one entry of the device's drawing storage
type File struct {
	Number int    // Slot number (e.g., 1 for "/001.txt")
	Size   int64  // Size in bytes as reported by the device
	Path   string // Path on the device (e.g., "/001.txt")
}

// Tokenize splits a frame into tokens using shell quoting rules.
func Tokenize(frame string) ([]string, error) {
	tokens, err := shellquote.Split(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return tokens, nil
}

// IsOK reports whether the frame is a success response
func IsOK(frame string) bool {
	tokens, err := Tokenize(frame)
	return err == nil && len(tokens) > 0 && tokens[0] == TokenOK
}

// ParseGreeting parses the frame a device sends right after connect.
// The first token must be "hello"; the remaining KEY:VALUE tokens are
// returned as a map.
func ParseGreeting(frame string) (map[string]string, error) {
	return parseFields(frame, TokenHello)
}

// ParseInfo parses the response to an M122 info request.
func ParseInfo(frame string) (map[string]string, error) {
	return parseFields(frame, TokenOK)
}

// parseFields checks the leading token and splits each remaining token on
// its first colon. Values keep any further colons, which MAC addresses rely on.
func parseFields(frame, want string) (map[string]string, error) {
	tokens, err := Tokenize(frame)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 || tokens[0] != want {
		return nil, fmt.Errorf("%w: expected %q", ErrMalformedResponse, want)
	}

	fields := make(map[string]string, len(tokens)-1)
	for _, token := range tokens[1:] {
		key, value, found := strings.Cut(token, ":")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: field %q has no key", ErrMalformedResponse, token)
		}
		fields[key] = value
	}
	return fields, nil
}

// ParseFileList parses the response to an M20 listing, which looks like
//
//	ok FS:/001.txt-1234;/002.txt-567;
func ParseFileList(frame string) ([]File, error) {
	tokens, err := Tokenize(frame)
	if err != nil {
		return nil, err
	}
	if len(tokens) < 2 || tokens[0] != TokenOK {
		return nil, fmt.Errorf("%w: expected %q listing", ErrMalformedResponse, TokenOK)
	}

	prefix, listing, found := strings.Cut(tokens[1], ":")
	if !found || prefix != fileSystemPrefix {
		return nil, fmt.Errorf("%w: expected %s listing", ErrMalformedResponse, fileSystemPrefix)
	}

	files := make([]File, 0)
	for _, entry := range strings.Split(listing, ";") {
		if entry == "" {
			continue
		}
		path, size, found := strings.Cut(entry, "-")
		if !found {
			return nil, fmt.Errorf("%w: file entry %q", ErrMalformedResponse, entry)
		}

		number, err := slotNumber(path)
		if err != nil {
			return nil, err
		}
		bytes, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: file size %q", ErrMalformedResponse, size)
		}

		files = append(files, File{Number: number, Size: bytes, Path: path})
	}
	return files, nil
}

// slotNumber extracts 1 from "/001.txt"
func slotNumber(path string) (int, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(path, "/"), ".txt")
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("%w: file path %q", ErrMalformedResponse, path)
	}
	return n, nil
}
