// Package diagnostics checks why a Line-us cannot be reached.
//
// A run lists the local networks, scans each one, collects the devices
// announced over mDNS and then connects to every device found three ways:
// by plain DNS name, by mDNS name and by IP address. Comparing the three
// shows whether name resolution or the network itself is at fault.
package diagnostics
