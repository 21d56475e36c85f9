// Package lineus is a client for Line-us drawing robots.
//
// A Line-us joins the local Wi-Fi network, announces itself over mDNS as
// "_lineus._tcp" and accepts one TCP session at a time on port 1337.
// Commands are G-code-like text lines; each command gets exactly one
// response, and moves are answered only once the arm arrives.
//
// Connecting to the first announced device and drawing a line:
//
//	d, err := lineus.New(ctx, lineus.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	if !d.Connect(ctx, "") {
//	    return errors.New("no Line-us found")
//	}
//	d.Move(1000, 0, 0)
//	d.Move(1000, 1000, 0)
//
// When multicast does not reach the device, ScanNetwork probes every host
// of the local networks instead:
//
//	devices, err := d.ScanNetwork(ctx, true)
package lineus
