// pkg/devicetypes/identity.go
package devicetypes

import (
	"fmt"
	"net"
	"strings"
)

// IdentityKind tells how a device identity addresses the armband
type IdentityKind string

const (
	IdentityNone     IdentityKind = "NONE"
	IdentityAddress  IdentityKind = "ADDRESS"
	IdentityPortPath IdentityKind = "PORT_PATH"
)

// Identity addresses a single armband, either by its 6-octet hardware
// address or by the transport path the dongle is attached to
type Identity struct {
	Kind    IdentityKind     `json:"kind"`
	Address net.HardwareAddr `json:"address,omitempty"`
	Path    string           `json:"path,omitempty"`
}

// ParseError reports a malformed device identity
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid device identity %q: %s", e.Input, e.Reason)
}

// addressLength is the textual length of "XX:XX:XX:XX:XX:XX"
const addressLength = 17

// ParseIdentity parses the command line device identity. Paths are kept
// verbatim; anything else must be a colon separated 6-octet hex address.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return Identity{Kind: IdentityNone}, nil
	}

	if isPortPath(s) {
		return Identity{Kind: IdentityPortPath, Path: s}, nil
	}

	addr, err := ParseAddress(s)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Kind: IdentityAddress, Address: addr}, nil
}

// ParseAddress parses exactly six two-digit hex octets separated by colons
func ParseAddress(s string) (net.HardwareAddr, error) {
	if len(s) != addressLength {
		return nil, &ParseError{Input: s, Reason: "expected 6 colon-separated hex octets"}
	}

	addr := make(net.HardwareAddr, 6)
	for i := 0; i < 6; i++ {
		pos := i * 3
		if i > 0 && s[pos-1] != ':' {
			return nil, &ParseError{Input: s, Reason: fmt.Sprintf("missing ':' at position %d", pos-1)}
		}

		hi, ok1 := fromHex(s[pos])
		lo, ok2 := fromHex(s[pos+1])
		if !ok1 || !ok2 {
			return nil, &ParseError{Input: s, Reason: fmt.Sprintf("octet %d is not hexadecimal", i+1)}
		}
		addr[i] = hi<<4 | lo
	}

	return addr, nil
}

// isPortPath reports whether s names a serial device rather than an
// address: an absolute unix path, a \\.\ device name or COM<n>
func isPortPath(s string) bool {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\\.\`) {
		return true
	}
	if len(s) < 4 || !strings.EqualFold(s[:3], "COM") {
		return false
	}
	for i := 3; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func fromHex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// String renders the identity the way it was given on the command line
func (id Identity) String() string {
	switch id.Kind {
	case IdentityAddress:
		return strings.ToUpper(id.Address.String())
	case IdentityPortPath:
		return id.Path
	default:
		return ""
	}
}

// HasAddress reports whether the identity pins a specific armband
func (id Identity) HasAddress() bool {
	return id.Kind == IdentityAddress && len(id.Address) == 6
}

// ShortID returns the last two address octets without separator, or an
// empty string when no address is known. It is used in file names.
func (id Identity) ShortID() string {
	if !id.HasAddress() {
		return ""
	}
	return fmt.Sprintf("%02X%02X", id.Address[4], id.Address[5])
}
