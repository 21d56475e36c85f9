package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name        string
		entry       *zeroconf.ServiceEntry
		wantOK      bool
		wantIP      string
		wantPort    int
		wantRemoved bool
	}{
		{
			name: "Line-us with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "line-us"},
				HostName:      "line-us.local.",
				Port:          1337,
				TTL:           120,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
			},
			wantOK:   true,
			wantIP:   "192.168.1.20",
			wantPort: 1337,
		},
		{
			name: "no port falls back to default",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "studio"},
				HostName:      "studio.local.",
				TTL:           120,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantOK:   true,
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name: "prefers IPv4 over IPv6",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "dual"},
				HostName:      "dual.local.",
				Port:          1337,
				TTL:           120,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantOK:   true,
			wantIP:   "192.168.1.50",
			wantPort: 1337,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				HostName:      "v6.local.",
				Port:          1337,
				TTL:           120,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantOK:   true,
			wantIP:   "fe80::1",
			wantPort: 1337,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				HostName:      "ghost.local.",
				Port:          1337,
				TTL:           120,
			},
			wantOK: false,
		},
		{
			name: "goodbye packet",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "line-us"},
				HostName:      "line-us.local.",
				Port:          1337,
				TTL:           0,
			},
			wantOK:      true,
			wantPort:    1337,
			wantRemoved: true,
		},
		{
			name:   "nil entry",
			entry:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := parseServiceEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("parseServiceEntry() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}

			if event.IP != tt.wantIP {
				t.Errorf("event.IP = %v, want %v", event.IP, tt.wantIP)
			}
			if event.Port != tt.wantPort {
				t.Errorf("event.Port = %v, want %v", event.Port, tt.wantPort)
			}
			if event.Removed != tt.wantRemoved {
				t.Errorf("event.Removed = %v, want %v", event.Removed, tt.wantRemoved)
			}
			if event.Instance != tt.entry.Instance {
				t.Errorf("event.Instance = %v, want %v", event.Instance, tt.entry.Instance)
			}
		})
	}
}

func TestParseServiceEntry_InstanceFromHostname(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "line-us.local.",
		Port:     1337,
		TTL:      120,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
	}

	event, ok := parseServiceEntry(entry)
	if !ok {
		t.Fatal("parseServiceEntry() ok = false, want true")
	}
	if event.Instance != "line-us.local" {
		t.Errorf("event.Instance = %q, want %q", event.Instance, "line-us.local")
	}
}

func TestNewZeroconfBrowser(t *testing.T) {
	b := NewZeroconfBrowser()
	if b == nil {
		t.Fatal("NewZeroconfBrowser() = nil")
	}
	if b.Refresh != DefaultRefresh {
		t.Errorf("Refresh = %v, want %v", b.Refresh, DefaultRefresh)
	}
	if DefaultExpiry <= b.Refresh {
		t.Errorf("DefaultExpiry = %v, must outlast a browse cycle (%v)", DefaultExpiry, b.Refresh)
	}
}

func TestForward_EndsWithCycle(t *testing.T) {
	entries := make(chan *zeroconf.ServiceEntry, 3)
	events := make(chan ServiceEvent, 3)

	entries <- &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "line-us"},
		HostName:      "line-us.local.",
		Port:          1337,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
		TTL:           120,
	}
	entries <- &zeroconf.ServiceEntry{ServiceRecord: zeroconf.ServiceRecord{Instance: "no-address"}, TTL: 120}
	close(entries)

	done := make(chan struct{})
	go func() {
		forward(context.Background(), entries, events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forward() did not return after the cycle closed its channel")
	}

	if len(events) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(events))
	}
	if event := <-events; event.Instance != "line-us" || event.IP != "192.168.1.20" {
		t.Errorf("event = %+v", event)
	}
}

func TestForward_StopsOnCancel(t *testing.T) {
	entries := make(chan *zeroconf.ServiceEntry)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		forward(ctx, entries, make(chan ServiceEvent))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forward() ignored cancellation")
	}
	close(entries)
}

// Note: live mDNS browsing needs multicast on the host network and is not
// exercised here.
