// internal/driver/myo/bgapi.go
package myo

import "fmt"

// BGAPI message header: bit 7 of the first byte selects event vs
// response, bits 3-6 the technology (0 = Bluetooth Smart) and bits 0-2 the
// high bits of an 11-bit payload length. Then length low, class, id.
const (
	headerSize     = 4
	messageEvent   = 0x80
	technologyMask = 0x78
	lengthHighMask = 0x07
)

// Message classes
const (
	classSystem     byte = 0x00
	classConnection byte = 0x03
	classAttClient  byte = 0x04
	classGAP        byte = 0x06
)

// Command ids
const (
	cmdConnectionDisconnect    byte = 0x00
	cmdAttClientReadByHandle   byte = 0x04
	cmdAttClientAttributeWrite byte = 0x05
	cmdGAPDiscover             byte = 0x02
	cmdGAPConnectDirect        byte = 0x03
	cmdGAPEndProcedure         byte = 0x04
)

// Event ids
const (
	evtConnectionStatus            byte = 0x00
	evtConnectionDisconnected      byte = 0x04
	evtAttClientProcedureCompleted byte = 0x01
	evtAttClientAttributeValue     byte = 0x05
	evtGAPScanResponse             byte = 0x00
)

// packet is one decoded BGAPI message
type packet struct {
	event   bool
	class   byte
	id      byte
	payload []byte
}

func (p packet) String() string {
	kind := "rsp"
	if p.event {
		kind = "evt"
	}
	return fmt.Sprintf("%s %02x:%02x [% x]", kind, p.class, p.id, p.payload)
}

// is reports whether p is the response or event (class, id)
func (p packet) is(event bool, class, id byte) bool {
	return p.event == event && p.class == class && p.id == id
}

// encodeCommand frames a command for the dongle
func encodeCommand(class, id byte, payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, headerSize+n)
	buf[0] = byte(n>>8) & lengthHighMask
	buf[1] = byte(n)
	buf[2] = class
	buf[3] = id
	copy(buf[headerSize:], payload)
	return buf
}

// encodeEvent frames an event. The dongle never receives events; this
// is used to build replies in tests and by the simulator.
func encodeEvent(class, id byte, payload []byte) []byte {
	buf := encodeCommand(class, id, payload)
	buf[0] |= messageEvent
	return buf
}

// decoder reassembles packets from the serial byte stream
type decoder struct {
	buf []byte
}

func (d *decoder) feed(data []byte) {
	d.buf = append(d.buf, data...)
}

func (d *decoder) reset() {
	d.buf = d.buf[:0]
}

// next returns the next complete packet. Bytes that cannot start a
// Bluetooth Smart header are skipped to regain framing.
func (d *decoder) next() (packet, bool) {
	for len(d.buf) > 0 && d.buf[0]&technologyMask != 0 {
		d.buf = d.buf[1:]
	}
	if len(d.buf) < headerSize {
		return packet{}, false
	}

	length := int(d.buf[0]&lengthHighMask)<<8 | int(d.buf[1])
	if len(d.buf) < headerSize+length {
		return packet{}, false
	}

	p := packet{
		event:   d.buf[0]&messageEvent != 0,
		class:   d.buf[2],
		id:      d.buf[3],
		payload: append([]byte(nil), d.buf[headerSize:headerSize+length]...),
	}
	d.buf = d.buf[headerSize+length:]
	return p, true
}
