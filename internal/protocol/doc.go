// Package protocol implements the Line-us text command protocol.
//
// Line-us devices speak a simple request/response protocol over TCP
// (default port 1337). Every message in either direction is a frame of
// ASCII text terminated by a single NUL (0x00) byte. There is no length
// prefix: the NUL is the only framing signal, and a device may split one
// frame across several TCP segments.
//
// # Requests
//
// A request is a command token, one space, a parameter string and the
// NUL terminator:
//
//	G01 X900 Y300 Z0\x00
//	M122 \x00
//
// The space is sent even when there are no parameters; the firmware
// tolerates it. Raw G-code lines uploaded to the device's storage are
// sent verbatim without the extra space (see EncodeRaw).
//
// # Responses
//
// Successful responses begin with the token "ok". The first frame a
// device sends after TCP connect is the greeting, which begins with
// "hello" followed by KEY:VALUE fields:
//
//	hello VERSION:"3.0.0 May 15 2019" NAME:line-us SERIAL:354484
//
// Fields are tokenized with shell quoting rules, so values containing
// spaces arrive quoted.
//
// # Usage Example
//
//	if _, err := conn.Write(protocol.Encode("M122", "")); err != nil {
//	    return err
//	}
//	resp, err := protocol.ReadFrame(bufio.NewReader(conn))
//	if err != nil {
//	    return err
//	}
//	info, err := protocol.ParseInfo(resp)
//
// # Thread Safety
//
// All functions are stateless. ReadFrame must not be called concurrently
// on the same reader.
package protocol
