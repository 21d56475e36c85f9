package scan

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lineus/lineus/internal/conn"
	"github.com/lineus/lineus/internal/discovery"
	"github.com/lineus/lineus/internal/logging"
	"github.com/lineus/lineus/internal/protocol"
)

const (
	// DefaultWorkers is the number of parallel probe workers
	DefaultWorkers = 20

	// DefaultProbeTimeout bounds each probe's connect and greeting read
	DefaultProbeTimeout = 200 * time.Millisecond
)

var errNotLineus = errors.New("greeting is not from a Line-us")

// Options selects what a scan covers
type Options struct {
	// FirstOnly stops the scan at the first device found
	FirstOnly bool

	// Interface restricts the scan to one interface name (e.g., "en0")
	Interface string
}

// Scanner probes every host of the local IPv4 networks for a Line-us.
//
// A probe connects to the device port and reads the greeting; a host
// counts as a device when the greeting starts with "hello" and carries a
// NAME field. Zero values select the defaults.
type Scanner struct {
	Workers      int
	ProbeTimeout time.Duration
	Port         int

	// Dial opens probe sockets (default net.Dialer.DialContext)
	Dial conn.DialFunc

	// Interfaces enumerates networks (default LocalInterfaces)
	Interfaces InterfacesFunc

	// Rate caps probes per second across all workers; zero is unlimited
	Rate rate.Limit
}

// New creates a Scanner with default settings
func New() *Scanner {
	return &Scanner{
		Workers:      DefaultWorkers,
		ProbeTimeout: DefaultProbeTimeout,
		Port:         discovery.DefaultPort,
	}
}

// Networks returns the interfaces a scan would cover
func (s *Scanner) Networks() ([]NetworkInterface, error) {
	if s.Interfaces != nil {
		return s.Interfaces()
	}
	return LocalInterfaces()
}

// Scan probes the local networks and returns the devices that answered,
// ordered by address. Unreachable hosts are not errors and an empty
// result means nothing answered.
//
// The returned error is set when interfaces cannot be enumerated, or when
// ctx is cancelled, in which case the devices found so far are returned
// with it.
func (s *Scanner) Scan(ctx context.Context, opts Options) ([]discovery.DeviceHandle, error) {
	networks, err := s.Networks()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	hosts := s.targets(networks, opts.Interface)
	if len(hosts) == 0 {
		logging.Debug("No hosts to scan", zap.String("interface", opts.Interface))
		return nil, nil
	}

	var limiter *rate.Limiter
	if s.Rate > 0 {
		limiter = rate.NewLimiter(s.Rate, 1)
	}

	parts := Partition(hosts, s.workers())
	logging.Info("Scanning for devices",
		zap.Int("hosts", len(hosts)),
		zap.Int("workers", len(parts)),
		zap.Bool("first_only", opts.FirstOnly),
	)

	var found atomic.Bool
	results := make([][]discovery.DeviceHandle, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			devices, err := s.probeAll(gctx, part, limiter, &found, opts.FirstOnly)
			results[i] = devices
			return err
		})
	}
	waitErr := g.Wait()

	var devices []discovery.DeviceHandle
	for _, r := range results {
		devices = append(devices, r...)
	}
	sortByAddress(devices)

	if opts.FirstOnly && len(devices) > 1 {
		devices = devices[:1]
	}

	logging.Info("Scan finished", zap.Int("devices", len(devices)))

	if waitErr != nil {
		return devices, fmt.Errorf("scan interrupted: %w", waitErr)
	}
	return devices, nil
}

// targets collects the hosts to probe, skipping duplicates from
// interfaces that share a network
func (s *Scanner) targets(networks []NetworkInterface, only string) []netip.Addr {
	seen := make(map[netip.Addr]struct{})
	var hosts []netip.Addr
	for _, n := range networks {
		if only != "" && n.Name != only {
			continue
		}
		for _, h := range HostRange(n) {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// probeAll runs one worker's share of the scan on a single reusable Conn
func (s *Scanner) probeAll(ctx context.Context, hosts []netip.Addr, limiter *rate.Limiter, found *atomic.Bool, firstOnly bool) ([]discovery.DeviceHandle, error) {
	c := conn.New(conn.Config{Port: s.port(), Dial: s.Dial})
	defer c.Close()

	var devices []discovery.DeviceHandle
	for _, host := range hosts {
		if firstOnly && found.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return devices, err
			}
		}

		handle, ok := s.probe(ctx, c, host)
		if !ok {
			continue
		}
		devices = append(devices, handle)

		if firstOnly {
			found.Store(true)
			break
		}
	}
	return devices, nil
}

func (s *Scanner) probe(ctx context.Context, c *conn.Conn, host netip.Addr) (discovery.DeviceHandle, bool) {
	address := netip.AddrPortFrom(host, uint16(s.port())).String()

	if !c.Open(ctx, address, s.probeTimeout(), 0) {
		return discovery.DeviceHandle{}, false
	}
	defer c.Close()

	hello, ok := c.Hello()
	name := hello[protocol.FieldName]
	if !ok || name == "" {
		logging.LogProbe(address, errNotLineus)
		return discovery.DeviceHandle{}, false
	}

	logging.LogProbe(address, nil)
	return discovery.NewDeviceHandle(name, host.String(), s.port()), true
}

func (s *Scanner) workers() int {
	if s.Workers <= 0 {
		return DefaultWorkers
	}
	return s.Workers
}

func (s *Scanner) probeTimeout() time.Duration {
	if s.ProbeTimeout <= 0 {
		return DefaultProbeTimeout
	}
	return s.ProbeTimeout
}

func (s *Scanner) port() int {
	if s.Port <= 0 {
		return discovery.DefaultPort
	}
	return s.Port
}

// Partition deals hosts round-robin into at most workers slices, so
// consecutive addresses are probed in parallel
func Partition(hosts []netip.Addr, workers int) [][]netip.Addr {
	if len(hosts) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(hosts) {
		workers = len(hosts)
	}

	parts := make([][]netip.Addr, workers)
	for i, h := range hosts {
		parts[i%workers] = append(parts[i%workers], h)
	}
	return parts
}

func sortByAddress(devices []discovery.DeviceHandle) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, errA := netip.ParseAddr(devices[i].IP)
		b, errB := netip.ParseAddr(devices[j].IP)
		if errA != nil || errB != nil {
			return devices[i].IP < devices[j].IP
		}
		return a.Less(b)
	})
}
