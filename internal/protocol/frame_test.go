package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"testing/iotest"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		parameters string
		want       []byte
	}{
		{
			name:       "move with parameters",
			command:    "G01",
			parameters: "X900 Y300 Z0",
			want:       []byte("G01 X900 Y300 Z0\x00"),
		},
		{
			name:       "empty parameters keep the space",
			command:    "M122",
			parameters: "",
			want:       []byte("M122 \x00"),
		},
		{
			name:       "quoted parameter",
			command:    "M550",
			parameters: `P"my line-us"`,
			want:       []byte("M550 P\"my line-us\"\x00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.command, tt.parameters); !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%q, %q) = %q, want %q", tt.command, tt.parameters, got, tt.want)
			}
		})
	}
}

func TestEncodeRaw(t *testing.T) {
	got := EncodeRaw("G01 X1 Y2")
	if !bytes.Equal(got, []byte("G01 X1 Y2\x00")) {
		t.Errorf("EncodeRaw() = %q", got)
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "simple frame", data: "ok\x00", want: "ok"},
		{name: "greeting", data: "hello NAME:line-us SERIAL:1\x00", want: "hello NAME:line-us SERIAL:1"},
		{name: "strips trailing CRLF", data: "ok X:1\r\n\x00", want: "ok X:1"},
		{name: "empty frame", data: "\x00", want: ""},
		{name: "stops at first terminator", data: "ok\x00hello\x00", want: "ok"},
		{name: "unterminated frame", data: "ok partial", wantErr: true},
		{name: "no data", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(iotest.OneByteReader(bytes.NewReader([]byte(tt.data))))
			got, err := ReadFrame(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadFrame_Sequential(t *testing.T) {
	r := bytes.NewReader([]byte("hello NAME:a\x00ok\x00"))

	first, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("first ReadFrame() error = %v", err)
	}
	second, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("second ReadFrame() error = %v", err)
	}
	if first != "hello NAME:a" || second != "ok" {
		t.Errorf("frames = %q, %q", first, second)
	}

	if _, err := ReadFrame(r); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() at end error = %v, want io.EOF", err)
	}
}

func TestReadFrame_UnexpectedEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte("ok")))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

// The device may split a frame across segments; feed it in pieces over a
// pipe and expect the payload back intact.
func TestEncodeReadFrame_LoopbackEcho(t *testing.T) {
	tests := []struct {
		command    string
		parameters string
	}{
		{"G01", "X900 Y300 Z0"},
		{"M122", ""},
		{"M28", "S1"},
		{"G28", `"quoted value"`},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			client, device := net.Pipe()
			defer client.Close()
			defer device.Close()

			frame := Encode(tt.command, tt.parameters)
			go func() {
				for i := range frame {
					if _, err := device.Write(frame[i : i+1]); err != nil {
						return
					}
				}
			}()

			got, err := ReadFrame(bufio.NewReader(client))
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			want := string(frame[:len(frame)-1])
			if got != want {
				t.Errorf("round trip = %q, want %q", got, want)
			}
		})
	}
}
