package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lineus/lineus/internal/logging"
)

const (
	// eventBuffer sizes the channel between the browser and the event loop
	eventBuffer = 16

	// DefaultExpiry drops a device that has not been announced for three
	// browse cycles
	DefaultExpiry = 3 * DefaultRefresh
)

// ErrAlreadyStarted is returned by Start on a running registry
var ErrAlreadyStarted = errors.New("discovery registry already started")

// FoundFunc is called with each newly announced device
type FoundFunc func(DeviceHandle)

type registryEntry struct {
	instance string
	handle   DeviceHandle
	lastSeen time.Time
}

// Registry keeps the ordered list of devices announced over mDNS.
//
// Notifications are applied on a single background goroutine in the order
// the Browser delivers them. First and All may be called from any goroutine.
//
// mDNS goodbye packets are not always delivered, so a device that has not
// been announced again within Expiry is dropped as well.
type Registry struct {
	browser Browser

	// Expiry is how long a device stays listed without a fresh
	// announcement; zero keeps devices until they are withdrawn
	Expiry time.Duration

	now func() time.Time

	mu      sync.RWMutex
	entries []registryEntry
	onFound FoundFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates a registry fed by browser. Call Start to begin
// browsing.
func NewRegistry(browser Browser) *Registry {
	return &Registry{browser: browser, Expiry: DefaultExpiry, now: time.Now}
}

// Start begins browsing for Line-us services. The subscription lives until
// Stop is called or ctx is cancelled.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	events := make(chan ServiceEvent, eventBuffer)
	go r.run(ctx, events, done, r.Expiry)

	if err := r.browser.Browse(ctx, ServiceType, ServiceDomain, events); err != nil {
		r.Stop()
		return err
	}

	logging.Debug("Discovery started", zap.String("service", ServiceType))
	return nil
}

// Stop ends the browse subscription and waits for the event loop to exit.
// It is safe to call more than once.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Registry) run(ctx context.Context, events <-chan ServiceEvent, done chan<- struct{}, expiry time.Duration) {
	defer close(done)

	var sweep <-chan time.Time
	if expiry > 0 {
		ticker := time.NewTicker(expiry / 3)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			r.apply(event)
		case <-sweep:
			r.expire(expiry)
		}
	}
}

// OnDeviceFound registers the listener invoked for each newly announced
// device. It runs on the discovery goroutine and must not block. Passing
// nil removes the listener.
func (r *Registry) OnDeviceFound(fn FoundFunc) {
	r.mu.Lock()
	r.onFound = fn
	r.mu.Unlock()
}

// apply folds one notification into the list
func (r *Registry) apply(event ServiceEvent) {
	if event.Removed {
		r.remove(event.Instance)
		return
	}

	handle := DeviceHandle{
		Name:    hostLabel(event.HostName),
		DNSName: strings.TrimSuffix(event.HostName, "."),
		IP:      event.IP,
		Port:    event.Port,
	}

	seen := r.now()

	r.mu.Lock()
	for i := range r.entries {
		if r.entries[i].instance == event.Instance {
			// Re-announcement; keep position, refresh address
			r.entries[i].handle = handle
			r.entries[i].lastSeen = seen
			r.mu.Unlock()
			return
		}
	}
	r.entries = append(r.entries, registryEntry{instance: event.Instance, handle: handle, lastSeen: seen})
	onFound := r.onFound
	r.mu.Unlock()

	logging.Info("Device announced",
		zap.String("name", handle.Name),
		zap.String("ip", handle.IP),
		zap.Int("port", handle.Port),
	)

	if onFound != nil {
		onFound(handle)
	}
}

func (r *Registry) remove(instance string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].instance == instance {
			logging.Info("Device removed", zap.String("instance", instance))
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// expire drops devices not announced within expiry
func (r *Registry) expire(expiry time.Duration) {
	cutoff := r.now().Add(-expiry)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			logging.Info("Device expired",
				zap.String("instance", e.instance),
				zap.Time("last_seen", e.lastSeen),
			)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
}

// First returns the oldest device still announced
func (r *Registry) First() (DeviceHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return DeviceHandle{}, false
	}
	return r.entries[0].handle, true
}

// All returns a snapshot of the announced devices in announcement order
func (r *Registry) All() []DeviceHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]DeviceHandle, len(r.entries))
	for i, e := range r.entries {
		devices[i] = e.handle
	}
	return devices
}

// Len returns the number of announced devices
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
