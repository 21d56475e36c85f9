package scan

import (
	"fmt"
	"net"
	"net/netip"
	"sort"

	"go.uber.org/zap"

	"github.com/lineus/lineus/internal/logging"
)

// MinPrefix is the shortest IPv4 prefix that is scanned. A /16 is already
// 65534 probes; anything wider is skipped.
const MinPrefix = 16

// NetworkInterface is an IPv4 address assigned to a broadcast-capable
// local interface
type NetworkInterface struct {
	Name      string
	Address   netip.Addr
	Netmask   netip.Addr
	Broadcast netip.Addr
	Network   netip.Prefix
}

// String returns "en0 192.168.1.20/24"
func (n NetworkInterface) String() string {
	return fmt.Sprintf("%s %s/%d", n.Name, n.Address, n.Network.Bits())
}

// InterfacesFunc enumerates candidate networks
type InterfacesFunc func() ([]NetworkInterface, error)

// LocalInterfaces lists the IPv4 networks of the host's up,
// broadcast-capable, non-loopback interfaces. It is evaluated fresh on
// every call.
func LocalInterfaces() ([]NetworkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	result := make([]NetworkInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagBroadcast == 0 ||
			iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			logging.Warn("Failed to read interface addresses",
				zap.String("interface", iface.Name),
				zap.Error(err),
			)
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			n, ok := fromIPNet(iface.Name, ipNet)
			if !ok {
				continue
			}
			result = append(result, n)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Address.Less(result[j].Address)
	})

	return result, nil
}

func fromIPNet(name string, ipNet *net.IPNet) (NetworkInterface, bool) {
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return NetworkInterface{}, false
	}
	ones, bits := ipNet.Mask.Size()
	if bits != 8*net.IPv4len {
		return NetworkInterface{}, false
	}

	addr := netip.AddrFrom4([4]byte(ip4))
	if addr.IsLoopback() {
		return NetworkInterface{}, false
	}
	return InterfaceFromPrefix(name, netip.PrefixFrom(addr, ones)), true
}

// InterfaceFromPrefix builds a NetworkInterface for an address with its
// prefix length, e.g. 192.168.1.20/24.
func InterfaceFromPrefix(name string, prefix netip.Prefix) NetworkInterface {
	addr := prefix.Addr().Unmap()
	network := prefix.Masked()

	var mask [4]byte
	for i := 0; i < prefix.Bits(); i++ {
		mask[i/8] |= 0x80 >> (i % 8)
	}

	ip := addr.As4()
	var broadcast [4]byte
	for i := range broadcast {
		broadcast[i] = ip[i] | ^mask[i]
	}

	return NetworkInterface{
		Name:      name,
		Address:   addr,
		Netmask:   netip.AddrFrom4(mask),
		Broadcast: netip.AddrFrom4(broadcast),
		Network:   network,
	}
}

// HostRange returns the usable host addresses of the interface's network,
// excluding the network and broadcast addresses. A /31 yields both
// addresses and a /32 yields the single address. Networks wider than
// MinPrefix are skipped.
func HostRange(n NetworkInterface) []netip.Addr {
	bits := n.Network.Bits()
	if !n.Network.Addr().Is4() || bits < 0 {
		return nil
	}
	if bits < MinPrefix {
		logging.Warn("Skipping network wider than scan limit",
			zap.String("interface", n.Name),
			zap.String("network", n.Network.String()),
			zap.Int("min_prefix", MinPrefix),
		)
		return nil
	}

	first := n.Network.Addr()
	switch bits {
	case 32:
		return []netip.Addr{first}
	case 31:
		return []netip.Addr{first, first.Next()}
	}

	broadcast := InterfaceFromPrefix(n.Name, n.Network).Broadcast
	hosts := make([]netip.Addr, 0, (1<<(32-bits))-2)
	for addr := first.Next(); addr != broadcast; addr = addr.Next() {
		hosts = append(hosts, addr)
	}
	return hosts
}
