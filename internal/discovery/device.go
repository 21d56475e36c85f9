package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the TCP port Line-us devices listen on
const DefaultPort = 1337

// DeviceHandle identifies a Line-us device found on the network, either
// announced over mDNS or located by an active scan.
type DeviceHandle struct {
	// Name is the device name (e.g., "line-us")
	Name string

	// DNSName is the mDNS hostname (e.g., "line-us.local")
	DNSName string

	// IP is the IPv4 address (e.g., "192.168.1.20")
	IP string

	// Port is the command port (typically 1337)
	Port int
}

// NewDeviceHandle builds a handle for a device known by name, as the
// scanner does after reading a greeting.
func NewDeviceHandle(name, ip string, port int) DeviceHandle {
	if port == 0 {
		port = DefaultPort
	}
	return DeviceHandle{
		Name:    name,
		DNSName: name + ".local",
		IP:      ip,
		Port:    port,
	}
}

// String returns a human-readable representation of the device
func (d DeviceHandle) String() string {
	return fmt.Sprintf("Line-us %s (%s) at %s:%d", d.Name, d.DNSName, d.IP, d.Port)
}

// Address returns the dialable IP:port of the device
func (d DeviceHandle) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Key identifies the device by address
func (d DeviceHandle) Key() string {
	return d.Address()
}

// IsZero reports whether the handle is the empty not-found value
func (d DeviceHandle) IsZero() bool {
	return d == DeviceHandle{}
}

// hostLabel returns the first label of an mDNS hostname:
// "line-us.local." -> "line-us"
func hostLabel(hostname string) string {
	label, _, _ := strings.Cut(strings.TrimSuffix(hostname, "."), ".")
	return label
}
