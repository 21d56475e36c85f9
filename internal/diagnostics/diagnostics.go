package diagnostics

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lineus/lineus/internal/conn"
	"github.com/lineus/lineus/internal/discovery"
	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/scan"
)

const (
	// DefaultPause separates connection attempts to the same device; the
	// device accepts a new session only after the previous one is torn down
	DefaultPause = 2 * time.Second

	// DefaultConnectTimeout bounds each connection check
	DefaultConnectTimeout = 5 * time.Second
)

// Connection methods tried for every device
const (
	MethodDNS  = "DNS"
	MethodMDNS = "mDNS"
	MethodIP   = "IP"
)

// Device sources
const (
	SourceScan = "scan"
	SourceMDNS = "mdns"
)

// StatusFunc receives a progress message before each step
type StatusFunc func(message string)

// Target is the discovery surface diagnostics runs against;
// *lineus.Device satisfies it
type Target interface {
	Networks() ([]scan.NetworkInterface, error)
	ScanInterface(ctx context.Context, name string, firstOnly bool) ([]discovery.DeviceHandle, error)
	DiscoveredDevices() []discovery.DeviceHandle
}

// ConnectionCheck is the outcome of connecting to a device one way
type ConnectionCheck struct {
	Method  string
	Target  string
	Success bool
	Hello   map[string]string
}

// DeviceCheck collects the connection checks for one device
type DeviceCheck struct {
	Device discovery.DeviceHandle
	Source string
	Checks []ConnectionCheck
}

// Reachable reports whether any method connected
func (d DeviceCheck) Reachable() bool {
	for _, c := range d.Checks {
		if c.Success {
			return true
		}
	}
	return false
}

// Report is the result of a diagnostics run
type Report struct {
	Networks []scan.NetworkInterface
	Scanned  map[string][]discovery.DeviceHandle // Keyed by interface name
	MDNS     []discovery.DeviceHandle
	Checks   []DeviceCheck
	Started  time.Time
	Finished time.Time
}

// DeviceCount returns the number of devices checked
func (r *Report) DeviceCount() int {
	return len(r.Checks)
}

// Runner performs the connectivity diagnostics
type Runner struct {
	Target         Target
	Port           int
	Dial           conn.DialFunc
	ConnectTimeout time.Duration

	// Pause between connection attempts; zero disables it
	Pause time.Duration

	OnStatus StatusFunc
}

// NewRunner creates a Runner with default timings
func NewRunner(target Target) *Runner {
	return &Runner{
		Target:         target,
		Port:           discovery.DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		Pause:          DefaultPause,
	}
}

// interfaceNames lists each interface once, in order. An interface with
// several IPv4 addresses is scanned as a whole.
func interfaceNames(networks []scan.NetworkInterface) []string {
	seen := make(map[string]bool, len(networks))
	var names []string
	for _, n := range networks {
		if seen[n.Name] {
			continue
		}
		seen[n.Name] = true
		names = append(names, n.Name)
	}
	return names
}

// Run executes every step in order: list networks, scan each network,
// list mDNS devices, then try every found device by DNS name, mDNS name
// and IP address.
//
// Cancelling ctx stops the run at the next step boundary; the partial
// report is discarded and ctx's error returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Scanned: make(map[string][]discovery.DeviceHandle),
		Started: time.Now(),
	}

	r.status("Finding networks")
	networks, err := r.Target.Networks()
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	report.Networks = networks
	if err := r.checkCancelled(ctx); err != nil {
		return nil, err
	}

	names := interfaceNames(networks)
	for _, name := range names {
		if err := r.checkCancelled(ctx); err != nil {
			return nil, err
		}
		r.status(fmt.Sprintf("Looking for Line-us on %s - this may take a few minutes", name))

		devices, err := r.Target.ScanInterface(ctx, name, false)
		if err != nil {
			if ctxErr := r.checkCancelled(ctx); ctxErr != nil {
				return nil, ctxErr
			}
			logging.Warn("Scan failed", zap.String("interface", name), zap.Error(err))
		}
		report.Scanned[name] = devices
	}

	r.status("Looking for mDNS Line-us")
	report.MDNS = r.Target.DiscoveredDevices()
	if err := r.checkCancelled(ctx); err != nil {
		return nil, err
	}

	r.status("Checking scanned Line-us")
	for _, name := range names {
		for _, device := range report.Scanned[name] {
			check, err := r.checkDevice(ctx, device, SourceScan)
			if err != nil {
				return nil, err
			}
			report.Checks = append(report.Checks, check)
		}
	}

	r.status("Checking Line-us found by mDNS")
	for _, device := range report.MDNS {
		check, err := r.checkDevice(ctx, device, SourceMDNS)
		if err != nil {
			return nil, err
		}
		report.Checks = append(report.Checks, check)
	}

	report.Finished = time.Now()
	logging.Info("Diagnostics complete",
		zap.Int("networks", len(report.Networks)),
		zap.Int("devices", report.DeviceCount()),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, nil
}

func (r *Runner) checkDevice(ctx context.Context, device discovery.DeviceHandle, source string) (DeviceCheck, error) {
	result := DeviceCheck{Device: device, Source: source}

	targets := []struct {
		method string
		host   string
	}{
		{MethodDNS, device.Name},
		{MethodMDNS, device.DNSName},
		{MethodIP, device.IP},
	}

	for i, t := range targets {
		if err := r.checkCancelled(ctx); err != nil {
			return DeviceCheck{}, err
		}
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				return DeviceCheck{}, err
			}
		}

		r.status(fmt.Sprintf("Trying to contact %s using %s", device.Name, t.method))
		result.Checks = append(result.Checks, r.tryConnect(ctx, t.method, t.host, device.Port))
	}

	return result, nil
}

func (r *Runner) tryConnect(ctx context.Context, method, host string, port int) ConnectionCheck {
	if port <= 0 {
		port = r.Port
	}
	check := ConnectionCheck{Method: method, Target: net.JoinHostPort(host, strconv.Itoa(port))}
	if host == "" {
		return check
	}

	c := conn.New(conn.Config{Port: r.Port, Dial: r.Dial})
	if !c.Open(ctx, check.Target, r.ConnectTimeout, 0) {
		return check
	}
	defer c.Close()

	check.Success = true
	check.Hello, _ = c.Hello()
	return check
}

func (r *Runner) pause(ctx context.Context) error {
	if r.Pause <= 0 {
		return nil
	}
	timer := time.NewTimer(r.Pause)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return r.checkCancelled(ctx)
	}
}

func (r *Runner) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		r.status("Cancelled")
		return err
	}
	return nil
}

func (r *Runner) status(message string) {
	logging.Debug("Diagnostics step", zap.String("status", message))
	if r.OnStatus != nil {
		r.OnStatus(message)
	}
}
