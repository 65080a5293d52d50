package devicetypes

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind IdentityKind
		wantAddr []byte
		wantPath string
		wantErr  bool
	}{
		{
			name:     "upper case address",
			input:    "53:89:D1:03:96:F7",
			wantKind: IdentityAddress,
			wantAddr: []byte{0x53, 0x89, 0xD1, 0x03, 0x96, 0xF7},
		},
		{
			name:     "lower case address",
			input:    "c8:2f:a1:00:0b:7e",
			wantKind: IdentityAddress,
			wantAddr: []byte{0xC8, 0x2F, 0xA1, 0x00, 0x0B, 0x7E},
		},
		{
			name:     "unix device path",
			input:    "/dev/ttyACM0",
			wantKind: IdentityPortPath,
			wantPath: "/dev/ttyACM0",
		},
		{
			name:     "windows com port",
			input:    "COM3",
			wantKind: IdentityPortPath,
			wantPath: "COM3",
		},
		{
			name:     "windows device namespace",
			input:    `\\.\COM12`,
			wantKind: IdentityPortPath,
			wantPath: `\\.\COM12`,
		},
		{
			name:     "empty",
			input:    "",
			wantKind: IdentityNone,
		},
		{name: "too short", input: "53:89:D1:03:96", wantErr: true},
		{name: "too long", input: "53:89:D1:03:96:F7:00", wantErr: true},
		{name: "dash separators", input: "53-89-D1-03-96-F7", wantErr: true},
		{name: "non hex digit", input: "53:89:G1:03:96:F7", wantErr: true},
		{name: "single digit octets", input: "5:89:D1:03:96:F7A", wantErr: true},
		{name: "garbage", input: "not-an-address", wantErr: true},
		{name: "word starting with com", input: "combo", wantErr: true},
		{name: "com prefix with text", input: "COMPLETELY WRONG", wantErr: true},
		{name: "com prefix with octets", input: "Com:53:89:D1", wantErr: true},
		{name: "com without number", input: "COM", wantErr: true},
		{
			name:     "lower case com port",
			input:    "com7",
			wantKind: IdentityPortPath,
			wantPath: "com7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentity(tt.input)
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("ParseIdentity(%q) error = %v, want *ParseError", tt.input, err)
				}
				if perr.Input != tt.input {
					t.Errorf("ParseError.Input = %q, want %q", perr.Input, tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentity(%q) unexpected error: %v", tt.input, err)
			}
			if id.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", id.Kind, tt.wantKind)
			}
			if tt.wantAddr != nil && !bytes.Equal(id.Address, tt.wantAddr) {
				t.Errorf("Address = % X, want % X", []byte(id.Address), tt.wantAddr)
			}
			if id.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", id.Path, tt.wantPath)
			}
		})
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	inputs := []string{"53:89:D1:03:96:F7", "00:00:00:00:00:00", "FF:FF:FF:FF:FF:FF", "/dev/ttyUSB1"}

	for _, in := range inputs {
		id, err := ParseIdentity(in)
		if err != nil {
			t.Fatalf("ParseIdentity(%q): %v", in, err)
		}
		again, err := ParseIdentity(id.String())
		if err != nil {
			t.Fatalf("ParseIdentity(%q): %v", id.String(), err)
		}
		if id.String() != again.String() || !bytes.Equal(id.Address, again.Address) {
			t.Errorf("round trip of %q gave %q", in, again.String())
		}
	}
}

func TestIdentityShortID(t *testing.T) {
	id, err := ParseIdentity("53:89:D1:03:96:F7")
	if err != nil {
		t.Fatal(err)
	}
	if got := id.ShortID(); got != "96F7" {
		t.Errorf("ShortID() = %q, want 96F7", got)
	}

	path, _ := ParseIdentity("/dev/ttyACM0")
	if got := path.ShortID(); got != "" {
		t.Errorf("ShortID() for path = %q, want empty", got)
	}
}
