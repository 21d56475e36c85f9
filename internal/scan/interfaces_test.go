package scan

import (
	"net"
	"net/netip"
	"testing"
)

func TestInterfaceFromPrefix(t *testing.T) {
	tests := []struct {
		prefix    string
		netmask   string
		broadcast string
		network   string
	}{
		{"192.168.1.77/24", "255.255.255.0", "192.168.1.255", "192.168.1.0/24"},
		{"10.1.2.3/16", "255.255.0.0", "10.1.255.255", "10.1.0.0/16"},
		{"172.16.5.6/30", "255.255.255.252", "172.16.5.7", "172.16.5.4/30"},
		{"192.168.0.130/25", "255.255.255.128", "192.168.0.255", "192.168.0.128/25"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			n := InterfaceFromPrefix("en0", netip.MustParsePrefix(tt.prefix))
			if n.Name != "en0" {
				t.Errorf("Name = %q", n.Name)
			}
			if n.Address != netip.MustParsePrefix(tt.prefix).Addr() {
				t.Errorf("Address = %v", n.Address)
			}
			if n.Netmask.String() != tt.netmask {
				t.Errorf("Netmask = %v, want %s", n.Netmask, tt.netmask)
			}
			if n.Broadcast.String() != tt.broadcast {
				t.Errorf("Broadcast = %v, want %s", n.Broadcast, tt.broadcast)
			}
			if n.Network.String() != tt.network {
				t.Errorf("Network = %v, want %s", n.Network, tt.network)
			}
		})
	}
}

func TestFromIPNet(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatal(err)
	}
	ipNet.IP = net.ParseIP("192.168.1.20")

	n, ok := fromIPNet("wlan0", ipNet)
	if !ok {
		t.Fatal("fromIPNet rejected an IPv4 network")
	}
	if n.String() != "wlan0 192.168.1.20/24" {
		t.Errorf("String() = %q", n.String())
	}

	_, v6, err := net.ParseCIDR("fe80::1/64")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fromIPNet("wlan0", v6); ok {
		t.Error("fromIPNet accepted an IPv6 network")
	}

	// Loopback addresses on a non-loopback interface are skipped too
	_, lo, err := net.ParseCIDR("127.0.0.1/8")
	if err != nil {
		t.Fatal(err)
	}
	lo.IP = net.ParseIP("127.0.0.1")
	if _, ok := fromIPNet("dummy0", lo); ok {
		t.Error("fromIPNet accepted a loopback network")
	}
}

func TestHostRange(t *testing.T) {
	tests := []struct {
		prefix string
		count  int
		first  string
		last   string
	}{
		{"192.168.1.1/30", 2, "192.168.1.1", "192.168.1.2"},
		{"192.168.1.20/24", 254, "192.168.1.1", "192.168.1.254"},
		{"10.0.0.0/31", 2, "10.0.0.0", "10.0.0.1"},
		{"10.0.0.9/32", 1, "10.0.0.9", "10.0.0.9"},
		{"10.20.0.1/16", 65534, "10.20.0.1", "10.20.255.254"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			hosts := HostRange(InterfaceFromPrefix("en0", netip.MustParsePrefix(tt.prefix)))
			if len(hosts) != tt.count {
				t.Fatalf("len = %d, want %d", len(hosts), tt.count)
			}
			if hosts[0].String() != tt.first {
				t.Errorf("first = %v, want %s", hosts[0], tt.first)
			}
			if hosts[len(hosts)-1].String() != tt.last {
				t.Errorf("last = %v, want %s", hosts[len(hosts)-1], tt.last)
			}
		})
	}
}

func TestHostRange_SkipsWideNetworks(t *testing.T) {
	if hosts := HostRange(InterfaceFromPrefix("en0", netip.MustParsePrefix("10.0.0.1/8"))); hosts != nil {
		t.Errorf("HostRange(/8) returned %d hosts", len(hosts))
	}
}

func TestLocalInterfaces(t *testing.T) {
	networks, err := LocalInterfaces()
	if err != nil {
		t.Skipf("interfaces unavailable: %v", err)
	}
	for _, n := range networks {
		if !n.Address.Is4() {
			t.Errorf("%s: non-IPv4 address %v", n.Name, n.Address)
		}
		if n.Address.IsLoopback() {
			t.Errorf("%s: loopback address included", n.Name)
		}
	}
}
