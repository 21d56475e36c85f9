package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseGreeting(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "name and serial",
			frame: "hello NAME:line-us-dev SERIAL:12345",
			want:  map[string]string{"NAME": "line-us-dev", "SERIAL": "12345"},
		},
		{
			name:  "quoted version with spaces",
			frame: `hello VERSION:"3.0.0 May 15 2019" NAME:line-us SERIAL:354484`,
			want: map[string]string{
				"VERSION": "3.0.0 May 15 2019",
				"NAME":    "line-us",
				"SERIAL":  "354484",
			},
		},
		{
			name:  "value containing colon",
			frame: "hello NAME:a:b",
			want:  map[string]string{"NAME": "a:b"},
		},
		{
			name:  "bare hello",
			frame: "hello",
			want:  map[string]string{},
		},
		{name: "wrong leading token", frame: "ok NAME:x", wantErr: true},
		{name: "empty frame", frame: "", wantErr: true},
		{name: "field without colon", frame: "hello NAME", wantErr: true},
		{name: "unbalanced quote", frame: `hello NAME:"x`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGreeting(tt.frame)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("ParseGreeting() error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGreeting() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseGreeting() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInfo(t *testing.T) {
	got, err := ParseInfo("ok mac:5C:CF:7F:12:34:56 firmware:3.0.0 wifi:-52")
	if err != nil {
		t.Fatalf("ParseInfo() error = %v", err)
	}

	want := map[string]string{
		"mac":      "5C:CF:7F:12:34:56",
		"firmware": "3.0.0",
		"wifi":     "-52",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseInfo() = %v, want %v", got, want)
	}

	if _, err := ParseInfo("error unknown command"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ParseInfo(error) error = %v, want ErrMalformedResponse", err)
	}
}

func TestParseFileList(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    []File
		wantErr bool
	}{
		{
			name:  "two files",
			frame: "ok FS:/001.txt-1234;/012.txt-56;",
			want: []File{
				{Number: 1, Size: 1234, Path: "/001.txt"},
				{Number: 12, Size: 56, Path: "/012.txt"},
			},
		},
		{
			name:  "empty storage",
			frame: "ok FS:",
			want:  []File{},
		},
		{name: "missing listing", frame: "ok", wantErr: true},
		{name: "wrong prefix", frame: "ok XX:/001.txt-1;", wantErr: true},
		{name: "bad size", frame: "ok FS:/001.txt-abc;", wantErr: true},
		{name: "bad path", frame: "ok FS:/abc.txt-1;", wantErr: true},
		{name: "error response", frame: "error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFileList(tt.frame)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFileList() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseFileList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOK(t *testing.T) {
	tests := []struct {
		frame string
		want  bool
	}{
		{"ok", true},
		{"ok X:1 Y:2", true},
		{"okay", false},
		{"error", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			if got := IsOK(tt.frame); got != tt.want {
				t.Errorf("IsOK(%q) = %v, want %v", tt.frame, got, tt.want)
			}
		})
	}
}
