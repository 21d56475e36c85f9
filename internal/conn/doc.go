// Package conn manages a TCP session with a single Line-us device.
//
// A session starts with Open, which connects to the device (by name, IP
// address or the first device found by mDNS) and reads the greeting frame
// the device sends unprompted. Commands are then exchanged strictly one at
// a time: every SendCommand writes one NUL-terminated request and blocks
// for exactly one NUL-terminated response.
//
//	c := conn.New(conn.Config{})
//	if !c.Open(ctx, "line-us.local", 0, 0) {
//	    return errors.New("no device")
//	}
//	defer c.Close()
//
//	resp, err := c.SendCommand("G01", "X1000 Y0 Z0")
//
// # Timeouts
//
// The read timeout defaults to none because drawing moves block until the
// arm arrives. When a read times out the frame boundary is lost, so the
// caller should Close and re-Open rather than continue the session.
//
// # Errors
//
// Open reports failure as a boolean. Exchange failures are returned as
// *Error values; use IsTransportError and IsTimeout to classify them.
package conn
