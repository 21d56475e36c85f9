package discovery

import "testing"

func TestDeviceHandle_String(t *testing.T) {
	device := DeviceHandle{
		Name:    "line-us",
		DNSName: "line-us.local",
		IP:      "192.168.1.20",
		Port:    1337,
	}

	expected := "Line-us line-us (line-us.local) at 192.168.1.20:1337"
	if device.String() != expected {
		t.Errorf("DeviceHandle.String() = %v, want %v", device.String(), expected)
	}
}

func TestNewDeviceHandle(t *testing.T) {
	tests := []struct {
		name     string
		devName  string
		ip       string
		port     int
		expected DeviceHandle
	}{
		{
			name:     "default port",
			devName:  "line-us",
			ip:       "10.0.0.5",
			port:     0,
			expected: DeviceHandle{Name: "line-us", DNSName: "line-us.local", IP: "10.0.0.5", Port: 1337},
		},
		{
			name:     "custom port",
			devName:  "studio",
			ip:       "10.0.0.6",
			port:     8080,
			expected: DeviceHandle{Name: "studio", DNSName: "studio.local", IP: "10.0.0.6", Port: 8080},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewDeviceHandle(tt.devName, tt.ip, tt.port); got != tt.expected {
				t.Errorf("NewDeviceHandle() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestDeviceHandle_Address(t *testing.T) {
	d := DeviceHandle{IP: "192.168.1.20", Port: 1337}
	if got := d.Address(); got != "192.168.1.20:1337" {
		t.Errorf("Address() = %v, want 192.168.1.20:1337", got)
	}
	if d.Key() != d.Address() {
		t.Errorf("Key() = %v, want %v", d.Key(), d.Address())
	}
}

func TestDeviceHandle_IsZero(t *testing.T) {
	if !(DeviceHandle{}).IsZero() {
		t.Error("empty handle should be zero")
	}
	if (DeviceHandle{Name: "x"}).IsZero() {
		t.Error("named handle should not be zero")
	}
}

func TestHostLabel(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"line-us.local.", "line-us"},
		{"line-us.local", "line-us"},
		{"line-us", "line-us"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			if got := hostLabel(tt.hostname); got != tt.want {
				t.Errorf("hostLabel(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}
