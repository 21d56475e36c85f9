// Package discovery finds Line-us devices that announce themselves over
// multicast DNS (mDNS / DNS-SD).
//
// Line-us devices advertise the "_lineus._tcp" service in the "local."
// domain. A Registry subscribes to those announcements through a Browser
// and keeps an ordered, de-duplicated list of DeviceHandle values for the
// lifetime of the subscription.
//
// # Lifecycle
//
// The registry owns its background subscription explicitly; nothing is
// started at package init:
//
//	registry := discovery.NewRegistry(discovery.NewZeroconfBrowser())
//	if err := registry.Start(ctx); err != nil {
//	    return err
//	}
//	defer registry.Stop()
//
// # Notifications
//
// Add and remove notifications are applied on one background goroutine in
// delivery order. A listener registered with OnDeviceFound runs on that
// goroutine for each new device and must not block:
//
//	registry.OnDeviceFound(func(d discovery.DeviceHandle) {
//	    found <- d
//	})
//
// # Queries
//
// First returns the oldest surviving announcement; All returns a snapshot
// copy. Both are safe to call while notifications arrive.
//
// # Browsers
//
// ZeroconfBrowser uses github.com/grandcat/zeroconf. FeedBrowser lets the
// caller push events directly. Note that the zeroconf resolver suppresses
// goodbye packets, so removals are rare in practice; a device that drops
// off the network stays listed until the registry is restarted.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
