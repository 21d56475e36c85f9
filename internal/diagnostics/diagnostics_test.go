package diagnostics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineus/lineus/internal/discovery"
	"github.com/lineus/lineus/internal/protocol"
	"github.com/lineus/lineus/internal/scan"
)

type fakeTarget struct {
	networks    []scan.NetworkInterface
	networksErr error
	scanned     map[string][]discovery.DeviceHandle
	mdns        []discovery.DeviceHandle
	scans       map[string]int
}

func (f *fakeTarget) Networks() ([]scan.NetworkInterface, error) {
	return f.networks, f.networksErr
}

func (f *fakeTarget) ScanInterface(ctx context.Context, name string, firstOnly bool) ([]discovery.DeviceHandle, error) {
	if f.scans == nil {
		f.scans = make(map[string]int)
	}
	f.scans[name]++
	return f.scanned[name], ctx.Err()
}

func (f *fakeTarget) DiscoveredDevices() []discovery.DeviceHandle {
	return f.mdns
}

// reachable answers dials to the listed addresses with a greeting
func reachable(addresses ...string) func(context.Context, string, string) (net.Conn, error) {
	ok := make(map[string]bool)
	for _, a := range addresses {
		ok[a] = true
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if !ok[address] {
			return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
		}
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			if _, err := server.Write(protocol.EncodeRaw("hello NAME:line-us SERIAL:42")); err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, server)
		}()
		return client, nil
	}
}

func newTestRunner(target Target, dial func(context.Context, string, string) (net.Conn, error)) (*Runner, *[]string) {
	var mu sync.Mutex
	var messages []string

	r := NewRunner(target)
	r.Pause = 0
	r.Dial = dial
	r.OnStatus = func(m string) {
		mu.Lock()
		messages = append(messages, m)
		mu.Unlock()
	}
	return r, &messages
}

func eth0() scan.NetworkInterface {
	return scan.InterfaceFromPrefix("eth0", netip.MustParsePrefix("10.0.0.2/24"))
}

func TestRunner_Run(t *testing.T) {
	scanned := discovery.NewDeviceHandle("line-us", "10.0.0.5", 1337)
	announced := discovery.DeviceHandle{Name: "other", DNSName: "other.local", IP: "10.0.0.9", Port: 1337}

	target := &fakeTarget{
		networks: []scan.NetworkInterface{eth0()},
		scanned:  map[string][]discovery.DeviceHandle{"eth0": {scanned}},
		mdns:     []discovery.DeviceHandle{announced},
	}
	r, messages := newTestRunner(target, reachable("line-us.local:1337", "10.0.0.5:1337"))

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Networks, 1)
	assert.Equal(t, []discovery.DeviceHandle{scanned}, report.Scanned["eth0"])
	assert.Equal(t, []discovery.DeviceHandle{announced}, report.MDNS)
	require.Equal(t, 2, report.DeviceCount())
	assert.False(t, report.Finished.Before(report.Started))

	first := report.Checks[0]
	assert.Equal(t, SourceScan, first.Source)
	require.Len(t, first.Checks, 3)
	assert.Equal(t, MethodDNS, first.Checks[0].Method)
	assert.Equal(t, "line-us:1337", first.Checks[0].Target)
	assert.False(t, first.Checks[0].Success)
	assert.True(t, first.Checks[1].Success)
	assert.Equal(t, "42", first.Checks[1].Hello["SERIAL"])
	assert.True(t, first.Checks[2].Success)
	assert.True(t, first.Reachable())

	second := report.Checks[1]
	assert.Equal(t, SourceMDNS, second.Source)
	assert.False(t, second.Reachable())

	assert.Equal(t, "Finding networks", (*messages)[0])
	assert.Contains(t, *messages, "Looking for Line-us on eth0 - this may take a few minutes")
	assert.Contains(t, *messages, "Trying to contact line-us using mDNS")
}

func TestRunner_InterfaceWithSeveralAddresses(t *testing.T) {
	scanned := discovery.NewDeviceHandle("line-us", "10.0.0.5", 1337)
	target := &fakeTarget{
		networks: []scan.NetworkInterface{
			eth0(),
			scan.InterfaceFromPrefix("eth0", netip.MustParsePrefix("192.168.7.2/24")),
		},
		scanned: map[string][]discovery.DeviceHandle{"eth0": {scanned}},
	}
	r, _ := newTestRunner(target, reachable("10.0.0.5:1337"))

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Networks, 2)
	assert.Equal(t, 1, target.scans["eth0"])
	assert.Equal(t, []discovery.DeviceHandle{scanned}, report.Scanned["eth0"])
	assert.Equal(t, 1, report.DeviceCount())
}

func TestRunner_NoDevices(t *testing.T) {
	target := &fakeTarget{networks: []scan.NetworkInterface{eth0()}}
	r, _ := newTestRunner(target, reachable())

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.DeviceCount())
	assert.Empty(t, report.Scanned["eth0"])
}

func TestRunner_NetworksError(t *testing.T) {
	target := &fakeTarget{networksErr: errors.New("denied")}
	r, _ := newTestRunner(target, reachable())

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestRunner_Cancelled(t *testing.T) {
	target := &fakeTarget{networks: []scan.NetworkInterface{eth0()}}
	r, messages := newTestRunner(target, reachable())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Equal(t, "Cancelled", (*messages)[len(*messages)-1])
}

func TestRunner_CancelledDuringPause(t *testing.T) {
	device := discovery.NewDeviceHandle("line-us", "10.0.0.5", 1337)
	target := &fakeTarget{
		networks: []scan.NetworkInterface{eth0()},
		mdns:     []discovery.DeviceHandle{device},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r, _ := newTestRunner(target, reachable())
	r.Pause = DefaultPause
	r.OnStatus = func(m string) {
		if m == "Trying to contact line-us using DNS" {
			cancel()
		}
	}

	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
