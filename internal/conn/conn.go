package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lineus/lineus/internal/discovery"
	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/protocol"
)

const (
	// DefaultConnectTimeout bounds the TCP connect when the caller gives none
	DefaultConnectTimeout = 5 * time.Second

	// DefaultPollInterval is how often Open checks discovery for a device
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultReadTimeout of zero means exchanges block until the device
	// answers; drawing moves can take several seconds.
	DefaultReadTimeout = time.Duration(0)
)

// DialFunc opens a stream connection, with the signature of
// net.Dialer.DialContext
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DeviceSource supplies the first passively discovered device
type DeviceSource interface {
	First() (discovery.DeviceHandle, bool)
}

// Config holds the collaborators of a Conn
type Config struct {
	// Port is used when a target has no explicit port (default 1337)
	Port int

	// Dial opens the TCP socket (default net.Dialer.DialContext)
	Dial DialFunc

	// Source is polled when Open is called without a target
	Source DeviceSource

	// PollInterval is the discovery poll period (default 100ms)
	PollInterval time.Duration
}

// Conn is a session with one Line-us device.
//
// A Conn is reusable: Close returns it to its initial state and Open may
// be called again, which the scanner relies on to probe many addresses
// with one value. Methods are safe for concurrent use. Exchanges are
// serialized, but Close and SetTimeout never wait for one: closing the
// socket unblocks a pending read.
type Conn struct {
	cfg Config

	// xmu serializes exchanges; mu guards the fields below and is never
	// held across socket I/O
	xmu sync.Mutex

	mu        sync.Mutex
	sock      net.Conn
	reader    *bufio.Reader
	connected bool
	greeting  string
	name      string
	timeout   time.Duration
}

// New creates a disconnected Conn
func New(cfg Config) *Conn {
	if cfg.Port == 0 {
		cfg.Port = discovery.DefaultPort
	}
	if cfg.Dial == nil {
		dialer := &net.Dialer{}
		cfg.Dial = dialer.DialContext
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Conn{cfg: cfg, timeout: DefaultReadTimeout}
}

// Open connects to target and reads the device greeting.
//
// target is "host" or "host:port". An empty target means the first device
// found by passive discovery; Open polls for one for up to
// waitForDiscovery. connectTimeout bounds the TCP connect and, unless a
// read timeout is set, the greeting read (zero selects
// DefaultConnectTimeout).
//
// Open reports failure as false and never returns an error: a refused or
// silent address is the common case when probing a subnet.
func (c *Conn) Open(ctx context.Context, target string, connectTimeout, waitForDiscovery time.Duration) bool {
	name := target
	if target == "" {
		handle, ok := c.waitForDevice(ctx, waitForDiscovery)
		if !ok {
			logging.Debug("No device discovered", zap.Duration("waited", waitForDiscovery))
			return false
		}
		target = handle.Address()
		name = handle.DNSName
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	address := withDefaultPort(target, c.cfg.Port)

	c.mu.Lock()
	if c.connected {
		c.closeLocked()
	}
	greetTimeout := c.timeout
	c.mu.Unlock()

	if greetTimeout <= 0 {
		greetTimeout = connectTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	sock, err := c.cfg.Dial(dialCtx, "tcp", address)
	cancel()
	if err != nil {
		logging.LogProbe(address, err)
		return false
	}

	reader := bufio.NewReader(sock)

	_ = sock.SetReadDeadline(time.Now().Add(greetTimeout))
	greeting, err := protocol.ReadFrame(reader)
	if err != nil {
		logging.Debug("Greeting not received", zap.String("address", address), zap.Error(err))
		_ = sock.Close()
		return false
	}
	_ = sock.SetReadDeadline(time.Time{})
	logging.LogFrame("received", []byte(greeting))

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Open may have won the race; the latest session wins
	if c.sock != nil {
		c.closeLocked()
	}
	c.sock = sock
	c.reader = reader
	c.connected = true
	c.greeting = greeting
	c.name = name
	logging.LogConnection(address, "connected")

	return true
}

func (c *Conn) waitForDevice(ctx context.Context, wait time.Duration) (discovery.DeviceHandle, bool) {
	if c.cfg.Source == nil {
		return discovery.DeviceHandle{}, false
	}
	if handle, ok := c.cfg.Source.First(); ok {
		return handle, true
	}
	if wait <= 0 {
		return discovery.DeviceHandle{}, false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return discovery.DeviceHandle{}, false
		case <-timer.C:
			return c.cfg.Source.First()
		case <-ticker.C:
			if handle, ok := c.cfg.Source.First(); ok {
				return handle, true
			}
		}
	}
}

// Close ends the session and resets the Conn to its defaults. An exchange
// in progress fails with a transport error. Closing a closed Conn is a
// no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.sock == nil {
		c.connected = false
		return nil
	}

	address := c.sock.RemoteAddr().String()
	err := c.sock.Close()
	logging.LogConnection(address, "closed")

	c.sock = nil
	c.reader = nil
	c.connected = false
	c.greeting = ""
	c.name = ""
	c.timeout = DefaultReadTimeout

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Connected reports whether a session is open
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Name returns the target the session was opened with (e.g.,
// "line-us.local")
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// RemoteAddr returns the device address, or "" when disconnected
func (c *Conn) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return ""
	}
	return c.sock.RemoteAddr().String()
}

// Greeting returns the raw greeting frame
func (c *Conn) Greeting() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.greeting
}

// Hello returns the greeting fields. It reports false when disconnected
// or when the greeting does not start with "hello".
func (c *Conn) Hello() (map[string]string, bool) {
	c.mu.Lock()
	connected, greeting := c.connected, c.greeting
	c.mu.Unlock()

	if !connected {
		return nil, false
	}
	fields, err := protocol.ParseGreeting(greeting)
	if err != nil {
		logging.Warn("Malformed greeting", zap.String("greeting", greeting), zap.Error(err))
		return nil, false
	}
	return fields, true
}

// Timeout returns the read timeout; zero means none
func (c *Conn) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// SetTimeout sets the read timeout for responses. Zero disables it and
// negative values are rejected. The change applies to a live session
// immediately.
func (c *Conn) SetTimeout(d time.Duration) bool {
	if d < 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeout = d
	if c.sock != nil {
		_ = c.sock.SetReadDeadline(deadline(d))
	}
	return true
}

// SetTimeoutString parses value with ParseTimeout and applies it. Invalid
// input returns false and leaves the timeout unchanged.
func (c *Conn) SetTimeoutString(value string) bool {
	d, err := ParseTimeout(value)
	if err != nil {
		logging.Debug("Rejected timeout", zap.String("value", value), zap.Error(err))
		return false
	}
	return c.SetTimeout(d)
}

// ParseTimeout accepts whole milliseconds ("50") or a Go duration
// ("1.5s", "200ms").
func ParseTimeout(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms < 0 {
			return 0, &Error{Type: ErrTypeInvalidTimeout, Message: fmt.Sprintf("negative timeout %q", value)}
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, &Error{Type: ErrTypeInvalidTimeout, Message: fmt.Sprintf("invalid timeout %q", value), Err: err}
	}
	return d, nil
}

// SendCommand sends "command parameters" and waits for the response frame.
// Socket errors are returned as *Error and end the session: a late reply
// would otherwise be read as the answer to the next command. Nothing is
// retried.
func (c *Conn) SendCommand(command, parameters string) (string, error) {
	return c.exchange(protocol.Encode(command, parameters))
}

// SendRaw sends a line verbatim and waits for the response frame
func (c *Conn) SendRaw(line string) (string, error) {
	return c.exchange(protocol.EncodeRaw(line))
}

func (c *Conn) exchange(frame []byte) (string, error) {
	c.xmu.Lock()
	defer c.xmu.Unlock()

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", newNotConnectedError("no open session")
	}
	sock, reader, timeout := c.sock, c.reader, c.timeout
	c.mu.Unlock()

	target := sock.RemoteAddr().String()

	_ = sock.SetWriteDeadline(deadline(timeout))
	if _, err := sock.Write(frame); err != nil {
		c.drop(sock)
		return "", ClassifyNetworkError(err, target, "failed to send command")
	}
	logging.LogFrame("sent", frame)

	_ = sock.SetReadDeadline(deadline(timeout))
	response, err := protocol.ReadFrame(reader)
	if err != nil {
		c.drop(sock)
		return "", ClassifyNetworkError(err, target, "failed to read response")
	}
	logging.LogFrame("received", []byte(response))

	return response, nil
}

// drop closes the session after a failed exchange, unless it was already
// closed or replaced meanwhile
func (c *Conn) drop(sock net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == sock {
		_ = c.closeLocked()
	}
}

// deadline converts a timeout into an absolute deadline; zero clears it
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

// withDefaultPort appends port to a target that has none
func withDefaultPort(target string, port int) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(strings.Trim(target, "[]"), strconv.Itoa(port))
}
