package discovery

import (
	"context"
	"sync"
)

// FeedBrowser is a Browser driven by the caller instead of the network.
// It bridges announcements from another source (a static host list, a
// different mDNS stack) into a Registry, and stands in for mDNS in tests.
//
// Events pushed before Browse is called are queued and delivered once the
// subscription starts.
type FeedBrowser struct {
	mu      sync.Mutex
	ctx     context.Context
	events  chan<- ServiceEvent
	pending []ServiceEvent
}

// NewFeedBrowser creates an idle feed
func NewFeedBrowser() *FeedBrowser {
	return &FeedBrowser{}
}

// Browse implements Browser
func (f *FeedBrowser) Browse(ctx context.Context, service, domain string, events chan<- ServiceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ctx = ctx
	f.events = events
	for _, event := range f.pending {
		f.sendLocked(event)
	}
	f.pending = nil
	return nil
}

// Announce delivers an add notification
func (f *FeedBrowser) Announce(instance, hostname, ip string, port int) {
	f.Push(ServiceEvent{Instance: instance, HostName: hostname, IP: ip, Port: port})
}

// Withdraw delivers a remove notification
func (f *FeedBrowser) Withdraw(instance string) {
	f.Push(ServiceEvent{Instance: instance, Removed: true})
}

// Push delivers an event, blocking until the registry accepts it or the
// subscription ends.
func (f *FeedBrowser) Push(event ServiceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.events == nil {
		f.pending = append(f.pending, event)
		return
	}
	f.sendLocked(event)
}

func (f *FeedBrowser) sendLocked(event ServiceEvent) {
	select {
	case f.events <- event:
	case <-f.ctx.Done():
	}
}
