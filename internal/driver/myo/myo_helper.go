// internal/driver/myo/myo_helper.go
package myo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"myo-recorder/pkg/driver"
)

const (
	imuPayloadSize      = 20
	emgPayloadSize      = 16
	firmwarePayloadSize = 8
)

// decodeIMU unpacks ten little-endian int16: quaternion w,x,y,z then
// accelerometer and gyroscope x,y,z
func decodeIMU(value []byte) (driver.OrientationSample, driver.AccelerometerSample, driver.GyroscopeSample, error) {
	var (
		orientation  driver.OrientationSample
		acceleration driver.AccelerometerSample
		gyroscope    driver.GyroscopeSample
	)

	if len(value) < imuPayloadSize {
		return orientation, acceleration, gyroscope, fmt.Errorf("imu payload too short: %d bytes", len(value))
	}

	word := func(i int) float32 {
		return float32(int16(binary.LittleEndian.Uint16(value[2*i:])))
	}

	for i := 0; i < 4; i++ {
		orientation[i] = word(i) / orientationScale
	}
	for i := 0; i < 3; i++ {
		acceleration[i] = word(4+i) / accelerometerScale
		gyroscope[i] = word(7+i) / gyroscopeScale
	}

	return orientation, acceleration, gyroscope, nil
}

// decodeEMG unpacks the two consecutive 8-channel int8 samples carried by
// one EMG notification
func decodeEMG(value []byte) ([2]driver.EMGSample, error) {
	var samples [2]driver.EMGSample
	if len(value) < emgPayloadSize {
		return samples, fmt.Errorf("emg payload too short: %d bytes", len(value))
	}

	for s := 0; s < 2; s++ {
		for ch := 0; ch < 8; ch++ {
			samples[s][ch] = int(int8(value[s*8+ch]))
		}
	}
	return samples, nil
}

// decodeFirmware unpacks major, minor, patch and hardware revision
func decodeFirmware(value []byte) (string, int, error) {
	if len(value) < firmwarePayloadSize {
		return "", 0, fmt.Errorf("firmware payload too short: %d bytes", len(value))
	}

	major := binary.LittleEndian.Uint16(value[0:])
	minor := binary.LittleEndian.Uint16(value[2:])
	patch := binary.LittleEndian.Uint16(value[4:])
	hardware := binary.LittleEndian.Uint16(value[6:])
	return fmt.Sprintf("%d.%d.%d", major, minor, patch), int(hardware), nil
}

// emgChannel returns which EMG characteristic handle h is, or -1
func emgChannel(h uint16) int {
	for i, handle := range emgDataHandles {
		if handle == h {
			return i
		}
	}
	return -1
}

// toBGAPIAddress reverses the printed octet order; BGAPI sends addresses
// least significant octet first
func toBGAPIAddress(addr net.HardwareAddr) []byte {
	out := make([]byte, len(addr))
	for i := range addr {
		out[len(addr)-1-i] = addr[i]
	}
	return out
}

// fromBGAPIAddress is the inverse of toBGAPIAddress
func fromBGAPIAddress(b []byte) net.HardwareAddr {
	return net.HardwareAddr(toBGAPIAddress(net.HardwareAddr(b)))
}

// advertisesControlService reports whether advertisement data lists the
// armband's control service
func advertisesControlService(data []byte) bool {
	return bytes.Contains(data, controlServiceUUID)
}

// attributeWritePayload builds attclient_attribute_write arguments
func attributeWritePayload(connection byte, handle uint16, value []byte) []byte {
	payload := make([]byte, 0, 4+len(value))
	payload = append(payload, connection)
	payload = binary.LittleEndian.AppendUint16(payload, handle)
	payload = append(payload, byte(len(value)))
	return append(payload, value...)
}

// readByHandlePayload builds attclient_read_by_handle arguments
func readByHandlePayload(connection byte, handle uint16) []byte {
	payload := []byte{connection}
	return binary.LittleEndian.AppendUint16(payload, handle)
}

// connectDirectPayload builds gap_connect_direct arguments
func connectDirectPayload(addr net.HardwareAddr) []byte {
	payload := make([]byte, 0, 15)
	payload = append(payload, toBGAPIAddress(addr)...)
	payload = append(payload, addressPublic)
	payload = binary.LittleEndian.AppendUint16(payload, connIntervalMin)
	payload = binary.LittleEndian.AppendUint16(payload, connIntervalMax)
	payload = binary.LittleEndian.AppendUint16(payload, supervisionLimit)
	return binary.LittleEndian.AppendUint16(payload, slaveLatency)
}

// resultCode reads the little-endian uint16 result at offset
func resultCode(payload []byte, offset int) (uint16, error) {
	if len(payload) < offset+2 {
		return 0, fmt.Errorf("payload too short for result: % x", payload)
	}
	return binary.LittleEndian.Uint16(payload[offset:]), nil
}

// attributeValue splits an attclient_attribute_value event into
// connection, handle and value
func attributeValue(payload []byte) (byte, uint16, []byte, bool) {
	if len(payload) < 5 {
		return 0, 0, nil, false
	}
	n := int(payload[4])
	if len(payload) < 5+n {
		return 0, 0, nil, false
	}
	return payload[0], binary.LittleEndian.Uint16(payload[1:]), payload[5 : 5+n], true
}
