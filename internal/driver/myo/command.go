// internal/driver/myo/command.go
package myo

// Attribute handles of the armband's GATT table
const (
	handleFirmwareVersion      uint16 = 0x17
	handleCommand              uint16 = 0x19
	handleIMUData              uint16 = 0x1c
	handleIMUDescriptor        uint16 = 0x1d
	handleClassifierDescriptor uint16 = 0x24
)

// EMG arrives on four characteristics, each with its own descriptor
var (
	emgDataHandles       = [4]uint16{0x2b, 0x2e, 0x31, 0x34}
	emgDescriptorHandles = [4]uint16{0x2c, 0x2f, 0x32, 0x35}
)

// Commands written to the command characteristic
const (
	myoCmdSetMode      byte = 0x01
	myoCmdSetSleepMode byte = 0x09
)

// Client characteristic configuration values
var (
	cccdOff      = []byte{0x00, 0x00}
	cccdNotify   = []byte{0x01, 0x00}
	cccdIndicate = []byte{0x02, 0x00}
)

// controlServiceUUID is the armband's control service d5060001-a904-deb9-4748-2c7f4a124842
// in advertisement (little-endian) byte order
var controlServiceUUID = []byte{
	0x42, 0x48, 0x12, 0x4a, 0x7f, 0x2c, 0x48, 0x47,
	0xb9, 0xde, 0x04, 0xa9, 0x01, 0x00, 0x06, 0xd5,
}

// Connection parameters for gap_connect_direct, in BGAPI units
const (
	connIntervalMin  uint16 = 6  // 7.5 ms
	connIntervalMax  uint16 = 6  // 7.5 ms
	supervisionLimit uint16 = 64 // 640 ms
	slaveLatency     uint16 = 0
	addressPublic    byte   = 0
	discoverGeneric  byte   = 1
)

// Scale factors of the IMU notification
const (
	orientationScale   = 16384.0
	accelerometerScale = 2048.0
	gyroscopeScale     = 16.0
)

// setModeCommand builds the set-mode payload
func setModeCommand(emg, imu, classifier byte) []byte {
	return []byte{myoCmdSetMode, 3, emg, imu, classifier}
}

// setSleepModeCommand builds the set-sleep-mode payload
func setSleepModeCommand(mode byte) []byte {
	return []byte{myoCmdSetSleepMode, 1, mode}
}
