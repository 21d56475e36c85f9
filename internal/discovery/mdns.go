package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/lineus/lineus/internal/logging"
)

const (
	// ServiceType is the mDNS service type Line-us devices announce
	ServiceType = "_lineus._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultRefresh is the length of one browse cycle. Each cycle uses a
	// fresh resolver, so devices still present are announced again.
	DefaultRefresh = 30 * time.Second

	// entryBuffer sizes the channel between the resolver and the registry
	entryBuffer = 16
)

// ServiceEvent is a single add or remove notification from a Browser
type ServiceEvent struct {
	// Instance is the mDNS service instance name, unique per announcement
	Instance string

	// HostName is the announced host (e.g., "line-us.local.")
	HostName string

	// IP is the resolved address, IPv4 preferred
	IP string

	// Port is the announced service port
	Port int

	// Removed is set when the service has gone away
	Removed bool
}

// Browser delivers service notifications for one service type.
//
// Browse starts a background subscription and returns once it is active.
// Events are sent on events until ctx is cancelled; Browse never closes
// the channel.
type Browser interface {
	Browse(ctx context.Context, service, domain string, events chan<- ServiceEvent) error
}

// ZeroconfBrowser is a Browser backed by the grandcat/zeroconf resolver.
//
// A zeroconf resolver reports each instance once and silently drops
// goodbye packets, so Browse restarts the resolver every Refresh. Devices
// that keep answering are re-announced each cycle; the Registry expires
// the ones that stop.
type ZeroconfBrowser struct {
	// Options are passed to zeroconf.NewResolver (e.g., interface selection)
	Options []zeroconf.ClientOption

	// Refresh is the browse cycle length (default DefaultRefresh)
	Refresh time.Duration
}

// NewZeroconfBrowser creates a browser that listens on all interfaces
func NewZeroconfBrowser() *ZeroconfBrowser {
	return &ZeroconfBrowser{Refresh: DefaultRefresh}
}

// Browse implements Browser. The first cycle starts before Browse returns
// so resolver errors reach the caller; later failures are logged and
// retried after Refresh.
func (b *ZeroconfBrowser) Browse(ctx context.Context, service, domain string, events chan<- ServiceEvent) error {
	refresh := b.Refresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}

	entries, cancel, err := b.browseOnce(ctx, refresh, service, domain)
	if err != nil {
		return err
	}

	go func() {
		for {
			forward(ctx, entries, events)
			cancel()

			for {
				if ctx.Err() != nil {
					return
				}
				entries, cancel, err = b.browseOnce(ctx, refresh, service, domain)
				if err == nil {
					break
				}
				logging.Warn("mDNS browse failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(refresh):
				}
			}
		}
	}()
	return nil
}

// browseOnce starts one browse cycle that ends after refresh. The entries
// channel is closed by the resolver when the cycle ends.
func (b *ZeroconfBrowser) browseOnce(ctx context.Context, refresh time.Duration, service, domain string) (<-chan *zeroconf.ServiceEntry, context.CancelFunc, error) {
	resolver, err := zeroconf.NewResolver(b.Options...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	cycleCtx, cancel := context.WithTimeout(ctx, refresh)
	entries := make(chan *zeroconf.ServiceEntry, entryBuffer)
	if err := resolver.Browse(cycleCtx, service, domain, entries); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return entries, cancel, nil
}

// forward converts entries into events until the cycle's channel closes
func forward(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, events chan<- ServiceEvent) {
	for {
		select {
		case <-ctx.Done():
			// Unblock the resolver until it closes the channel
			go func() {
				for range entries {
				}
			}()
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			event, ok := parseServiceEntry(entry)
			if !ok {
				logging.Debug("Ignoring mDNS entry without address",
					zap.String("instance", entry.Instance),
					zap.String("hostname", entry.HostName),
				)
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
			}
		}
	}
}

// parseServiceEntry converts a zeroconf entry into an event. Entries with
// a zero TTL are goodbye packets and become removals; zeroconf v1.0.0
// filters them out itself, which is why the Registry also expires entries.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (ServiceEvent, bool) {
	if entry == nil {
		return ServiceEvent{}, false
	}

	event := ServiceEvent{
		Instance: entry.Instance,
		HostName: entry.HostName,
		Port:     entry.Port,
		Removed:  entry.TTL == 0,
	}
	if event.Port == 0 {
		event.Port = DefaultPort
	}

	for _, addr := range entry.AddrIPv4 {
		event.IP = addr.String()
		break
	}
	if event.IP == "" && len(entry.AddrIPv6) > 0 {
		event.IP = entry.AddrIPv6[0].String()
	}

	// Removals are matched by instance and need no address
	if event.IP == "" && !event.Removed {
		return ServiceEvent{}, false
	}
	if event.Instance == "" {
		event.Instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return event, true
}
