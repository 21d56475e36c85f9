package lineus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lineus/lineus/internal/conn"
	"github.com/lineus/lineus/internal/discovery"
	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/protocol"
	"github.com/lineus/lineus/internal/scan"
)

// DeviceHandle identifies a device found by discovery or scanning
type DeviceHandle = discovery.DeviceHandle

// NetworkInterface is a local network the scanner can probe
type NetworkInterface = scan.NetworkInterface

// File is one stored drawing on the device
type File = protocol.File

const (
	// DefaultDiscoveryWait is how long Connect waits for an mDNS
	// announcement when no target is given
	DefaultDiscoveryWait = 2 * time.Second

	// DefaultCacheDuration is how long the M122 info response is reused
	DefaultCacheDuration = 30 * time.Second
)

// ErrCommandFailed is returned when the device does not answer "ok"
var ErrCommandFailed = errors.New("device rejected command")

// Config configures a Device. The zero value of every field selects its
// default; see DefaultConfig.
type Config struct {
	// Port is the device command port
	Port int

	// ConnectTimeout bounds Connect's TCP connect and greeting read
	ConnectTimeout time.Duration

	// DiscoveryWait is how long Connect("") waits for mDNS
	DiscoveryWait time.Duration

	// ReadTimeout bounds each response; zero waits indefinitely
	ReadTimeout time.Duration

	// Workers is the number of parallel scan workers
	Workers int

	// ProbeTimeout bounds each scan probe
	ProbeTimeout time.Duration

	// ProbeRate caps scan probes per second; zero is unlimited
	ProbeRate float64

	// CacheDuration is how long Info results are reused (0 = no cache)
	CacheDuration time.Duration

	// DisableDiscovery skips the mDNS subscription
	DisableDiscovery bool

	// Browser supplies mDNS events (default zeroconf)
	Browser discovery.Browser

	// Dial opens TCP sockets for connections and probes
	Dial conn.DialFunc

	// Interfaces enumerates networks to scan (default local interfaces)
	Interfaces scan.InterfacesFunc
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Port:           discovery.DefaultPort,
		ConnectTimeout: conn.DefaultConnectTimeout,
		DiscoveryWait:  DefaultDiscoveryWait,
		ReadTimeout:    conn.DefaultReadTimeout,
		Workers:        scan.DefaultWorkers,
		ProbeTimeout:   scan.DefaultProbeTimeout,
		CacheDuration:  DefaultCacheDuration,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.DiscoveryWait < 0 {
		c.DiscoveryWait = 0
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

// Device is a client for one Line-us at a time, plus the discovery
// machinery used to find it.
//
// New starts listening for mDNS announcements immediately, so devices
// announced while the caller prepares are already known by the time
// Connect is called without a target.
type Device struct {
	cfg      Config
	registry *discovery.Registry
	scanner  *scan.Scanner
	conn     *conn.Conn

	// cachedInfo is the last M122 response, valid until cacheTime + CacheDuration
	cachedInfo map[string]string
	cacheTime  time.Time
	cacheMutex sync.RWMutex
}

// New creates a Device and starts passive discovery. The subscription
// runs until Close.
func New(ctx context.Context, cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	d := &Device{cfg: cfg}

	connCfg := conn.Config{Port: cfg.Port, Dial: cfg.Dial}
	if !cfg.DisableDiscovery {
		browser := cfg.Browser
		if browser == nil {
			browser = discovery.NewZeroconfBrowser()
		}
		d.registry = discovery.NewRegistry(browser)
		if err := d.registry.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start discovery: %w", err)
		}
		connCfg.Source = d.registry
	}
	d.conn = conn.New(connCfg)

	d.scanner = scan.New()
	d.scanner.Workers = cfg.Workers
	d.scanner.ProbeTimeout = cfg.ProbeTimeout
	d.scanner.Port = cfg.Port
	d.scanner.Dial = cfg.Dial
	d.scanner.Interfaces = cfg.Interfaces
	if cfg.ProbeRate > 0 {
		d.scanner.Rate = rate.Limit(cfg.ProbeRate)
	}

	return d, nil
}

// Close disconnects and stops discovery
func (d *Device) Close() error {
	if d.registry != nil {
		d.registry.Stop()
	}
	return d.Disconnect()
}

// Connect opens a session with target, a hostname or IP address with an
// optional port. An empty target connects to the first device found by
// mDNS, waiting up to Config.DiscoveryWait for one to appear.
func (d *Device) Connect(ctx context.Context, target string) bool {
	return d.ConnectWith(ctx, target, d.cfg.ConnectTimeout, d.cfg.DiscoveryWait)
}

// ConnectWith is Connect with explicit timeouts
func (d *Device) ConnectWith(ctx context.Context, target string, connectTimeout, discoveryWait time.Duration) bool {
	d.invalidateCache()
	if err := d.conn.Close(); err != nil {
		logging.Debug("Close before connect failed", zap.Error(err))
	}
	if d.cfg.ReadTimeout > 0 {
		d.conn.SetTimeout(d.cfg.ReadTimeout)
	}
	if !d.conn.Open(ctx, target, connectTimeout, discoveryWait) {
		logging.Info("Connect failed", zap.String("target", target))
		return false
	}
	return true
}

// ConnectHandle opens a session with a discovered or scanned device
func (d *Device) ConnectHandle(ctx context.Context, handle DeviceHandle) bool {
	return d.Connect(ctx, handle.Address())
}

// Disconnect closes the session; it is a no-op when disconnected
func (d *Device) Disconnect() error {
	d.invalidateCache()
	return d.conn.Close()
}

// Connected reports whether a session is open
func (d *Device) Connected() bool {
	return d.conn.Connected()
}

// Name returns the target of the open session
func (d *Device) Name() string {
	return d.conn.Name()
}

// Hello returns the fields of the device greeting
func (d *Device) Hello() (map[string]string, bool) {
	return d.conn.Hello()
}

// Greeting returns the raw greeting frame
func (d *Device) Greeting() string {
	return d.conn.Greeting()
}

// SendCommand sends a command with parameters and returns the response
func (d *Device) SendCommand(command, parameters string) (string, error) {
	return d.conn.SendCommand(command, parameters)
}

// SendRaw sends a G-code line verbatim and returns the response
func (d *Device) SendRaw(line string) (string, error) {
	return d.conn.SendRaw(line)
}

// SetTimeout sets the response read timeout; zero disables it
func (d *Device) SetTimeout(timeout time.Duration) bool {
	return d.conn.SetTimeout(timeout)
}

// SetTimeoutString sets the timeout from milliseconds ("500") or a
// duration ("2s")
func (d *Device) SetTimeoutString(value string) bool {
	return d.conn.SetTimeoutString(value)
}

// Timeout returns the response read timeout
func (d *Device) Timeout() time.Duration {
	return d.conn.Timeout()
}

// DiscoveredDevices returns the devices announced over mDNS so far, oldest
// first
func (d *Device) DiscoveredDevices() []DeviceHandle {
	if d.registry == nil {
		return nil
	}
	return d.registry.All()
}

// OnDeviceFound registers fn to run for each new mDNS announcement. fn
// runs on the discovery goroutine and must not block.
func (d *Device) OnDeviceFound(fn func(DeviceHandle)) {
	if d.registry == nil {
		return
	}
	d.registry.OnDeviceFound(fn)
}

// ScanNetwork probes every local network for devices. With firstOnly the
// scan stops at the first device found.
func (d *Device) ScanNetwork(ctx context.Context, firstOnly bool) ([]DeviceHandle, error) {
	return d.scanner.Scan(ctx, scan.Options{FirstOnly: firstOnly})
}

// ScanInterface probes the networks of one interface
func (d *Device) ScanInterface(ctx context.Context, name string, firstOnly bool) ([]DeviceHandle, error) {
	return d.scanner.Scan(ctx, scan.Options{FirstOnly: firstOnly, Interface: name})
}

// Networks lists the local networks a scan covers
func (d *Device) Networks() ([]NetworkInterface, error) {
	return d.scanner.Networks()
}

// Info returns the device information fields from M122 (name, serial,
// firmware version, mac). Results are cached for Config.CacheDuration.
func (d *Device) Info() (map[string]string, error) {
	if info, ok := d.getCachedInfo(); ok {
		return info, nil
	}

	resp, err := d.conn.SendCommand("M122", "")
	if err != nil {
		return nil, err
	}
	info, err := protocol.ParseInfo(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse info: %w", err)
	}

	d.setCachedInfo(info)
	return info, nil
}

// Files lists the drawings stored on the device (M20)
func (d *Device) Files() ([]File, error) {
	resp, err := d.conn.SendCommand("M20", "")
	if err != nil {
		return nil, err
	}
	files, err := protocol.ParseFileList(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file list: %w", err)
	}
	return files, nil
}

// Move sends an interpolated move (G01) and waits until the arm arrives
func (d *Device) Move(x, y, z int) (string, error) {
	params := "X" + strconv.Itoa(x) + " Y" + strconv.Itoa(y) + " Z" + strconv.Itoa(z)
	return d.conn.SendCommand("G01", params)
}

// SaveDrawing stores G-code in a numbered slot on the device (M28 ...
// M29). Blank lines are skipped.
func (d *Device) SaveDrawing(gcode string, slot int) error {
	if slot < 0 {
		return fmt.Errorf("invalid slot %d", slot)
	}

	resp, err := d.conn.SendCommand("M28", "S"+strconv.Itoa(slot))
	if err != nil {
		return fmt.Errorf("failed to start upload: %w", err)
	}
	if !protocol.IsOK(resp) {
		return fmt.Errorf("%w: M28: %s", ErrCommandFailed, resp)
	}

	lines, err := d.uploadLines(gcode)
	if err != nil {
		// The file stays open on the device until M29
		return errors.Join(err, d.finishUpload())
	}
	if err := d.finishUpload(); err != nil {
		return err
	}

	logging.Info("Drawing saved", zap.Int("slot", slot), zap.Int("lines", lines))
	return nil
}

// uploadLines sends each non-blank line of gcode and returns how many were
// accepted
func (d *Device) uploadLines(gcode string) (int, error) {
	lines := 0
	for _, line := range strings.Split(gcode, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		resp, err := d.conn.SendRaw(line)
		if err != nil {
			return lines, fmt.Errorf("failed to upload line %d: %w", lines+1, err)
		}
		if !protocol.IsOK(resp) {
			return lines, fmt.Errorf("%w: line %d: %s", ErrCommandFailed, lines+1, resp)
		}
		lines++
	}
	return lines, nil
}

func (d *Device) finishUpload() error {
	resp, err := d.conn.SendCommand("M29", "")
	if err != nil {
		return fmt.Errorf("failed to finish upload: %w", err)
	}
	if !protocol.IsOK(resp) {
		return fmt.Errorf("%w: M29: %s", ErrCommandFailed, resp)
	}
	return nil
}

func (d *Device) getCachedInfo() (map[string]string, bool) {
	if d.cfg.CacheDuration <= 0 {
		return nil, false
	}

	d.cacheMutex.RLock()
	defer d.cacheMutex.RUnlock()

	if d.cachedInfo == nil || time.Since(d.cacheTime) >= d.cfg.CacheDuration {
		return nil, false
	}
	return copyFields(d.cachedInfo), true
}

func (d *Device) setCachedInfo(info map[string]string) {
	if d.cfg.CacheDuration <= 0 {
		return
	}

	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()

	d.cachedInfo = copyFields(info)
	d.cacheTime = time.Now()
}

func (d *Device) invalidateCache() {
	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()

	d.cachedInfo = nil
	d.cacheTime = time.Time{}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
