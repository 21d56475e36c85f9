// Package scan finds Line-us devices by probing every host of the local
// IPv4 networks on the device port.
//
// Scanning complements mDNS discovery on networks where multicast is
// filtered. Each eligible interface contributes its usable host addresses;
// the hosts are dealt round-robin to a pool of workers, and each worker
// reuses one connection to open, read the greeting and close in turn.
//
//	s := scan.New()
//	devices, err := s.Scan(ctx, scan.Options{FirstOnly: true})
//
// With FirstOnly set, workers stop before their next probe once any
// worker has found a device; probes already in flight run to their
// timeout.
package scan
