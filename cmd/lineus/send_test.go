package main

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineus/lineus"
)

// fakeDevice answers every frame with "ok <frame>" and records requests.
// A frame starting with hangUp closes the connection unanswered.
type fakeDevice struct {
	mu       sync.Mutex
	requests []string
	hangUp   string
}

func (f *fakeDevice) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = c.Write([]byte("hello NAME:test SERIAL:1\x00"))
				r := bufio.NewReader(c)
				for {
					frame, err := r.ReadString(0)
					if err != nil {
						return
					}
					frame = strings.TrimRight(frame, "\x00\r\n")
					f.mu.Lock()
					f.requests = append(f.requests, frame)
					hangUp := f.hangUp
					f.mu.Unlock()
					if hangUp != "" && strings.HasPrefix(frame, hangUp) {
						return
					}
					_, _ = c.Write([]byte("ok " + strings.TrimSpace(frame) + "\x00"))
				}
			}(c)
		}
	}()
	return ln.Addr().String()
}

func (f *fakeDevice) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func connectFake(t *testing.T) (*lineus.Device, *fakeDevice) {
	t.Helper()
	fake := &fakeDevice{}
	addr := fake.serve(t)

	cfg := lineus.DefaultConfig()
	cfg.DisableDiscovery = true
	d, err := lineus.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	require.True(t, d.Connect(context.Background(), addr))
	return d, fake
}

func TestSend(t *testing.T) {
	d, fake := connectFake(t)

	resp, err := send(d, `G01 X100 "Y200"`, false)
	require.NoError(t, err)
	assert.Equal(t, "ok G01 X100 Y200", resp)

	_, err = send(d, "M122", true)
	require.NoError(t, err)

	_, err = send(d, `G01 "X1`, false)
	assert.Error(t, err)

	_, err = send(d, "   ", false)
	assert.Error(t, err)

	assert.Equal(t, []string{"G01 X100 Y200", "M122"}, fake.Requests())
}

func TestRunShell(t *testing.T) {
	d, fake := connectFake(t)

	in := strings.NewReader("G28\n\nhello\ntimeout 250\ntimeout\n'bad\nM122\nquit\nG28\n")
	var out bytes.Buffer

	require.NoError(t, runShell(d, in, &out))

	assert.Equal(t, []string{"G28 ", "M122 "}, fake.Requests())
	text := out.String()
	assert.Contains(t, text, "ok G28")
	assert.Contains(t, text, "hello NAME:test SERIAL:1")
	assert.Contains(t, text, "timeout 250ms")
	assert.Contains(t, text, "usage: timeout VALUE")
	assert.Contains(t, text, "error: ")
	assert.Contains(t, text, "ok M122")
}

func TestRunShellEOF(t *testing.T) {
	d, _ := connectFake(t)
	var out bytes.Buffer
	assert.NoError(t, runShell(d, strings.NewReader("G28"), &out))
	assert.Contains(t, out.String(), "ok G28")
}

func TestRunShellEndsWithSession(t *testing.T) {
	d, fake := connectFake(t)
	fake.mu.Lock()
	fake.hangUp = "M112"
	fake.mu.Unlock()

	var out bytes.Buffer
	err := runShell(d, strings.NewReader("G28\nM112\nG28\n"), &out)
	require.Error(t, err)
	assert.False(t, d.Connected())
	assert.Equal(t, []string{"G28 ", "M112 "}, fake.Requests())
}
