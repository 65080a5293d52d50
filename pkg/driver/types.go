// pkg/driver/types.go
package driver

import "time"

// Sample types

// EMGSample holds one reading of the eight EMG electrodes
type EMGSample [8]int

// OrientationSample is a unit quaternion ordered w, x, y, z
type OrientationSample [4]float32

// AccelerometerSample is acceleration in g along x, y, z
type AccelerometerSample [3]float32

// GyroscopeSample is angular velocity in deg/s around x, y, z
type GyroscopeSample [3]float32

// Modes

// SleepMode controls whether the armband sleeps when idle
type SleepMode byte

const (
	SleepModeNormal     SleepMode = 0x00
	SleepModeNeverSleep SleepMode = 0x01
)

// EMGMode selects the EMG streaming mode
type EMGMode byte

const (
	EMGModeNone    EMGMode = 0x00
	EMGModeSend    EMGMode = 0x02
	EMGModeSendRaw EMGMode = 0x03
)

// IMUMode selects the IMU streaming mode
type IMUMode byte

const (
	IMUModeNone       IMUMode = 0x00
	IMUModeSendData   IMUMode = 0x01
	IMUModeSendEvents IMUMode = 0x02
	IMUModeSendAll    IMUMode = 0x03
	IMUModeSendRaw    IMUMode = 0x04
)

// ClassifierMode enables or disables the on-device gesture classifier
type ClassifierMode byte

const (
	ClassifierModeDisabled ClassifierMode = 0x00
	ClassifierModeEnabled  ClassifierMode = 0x01
)

// DeviceInfo contains what a session learned about the connected armband
type DeviceInfo struct {
	Kind            string    `json:"kind"`
	Address         string    `json:"address,omitempty"`
	Port            string    `json:"port,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	HardwareRev     int       `json:"hardware_rev,omitempty"`
	ConnectedAt     time.Time `json:"connected_at,omitempty"`
	PacketsReceived int64     `json:"packets_received"`

	Transport *TransportStats `json:"transport,omitempty"`
}

// TransportStats summarises the byte link to the dongle
type TransportStats struct {
	Name         string    `json:"name"`
	Open         bool      `json:"open"`
	BytesRead    int64     `json:"bytes_read"`
	BytesWritten int64     `json:"bytes_written"`
	Errors       int64     `json:"errors"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionConfig is what a session factory needs to build a session
type SessionConfig struct {
	Kind           string                 `json:"kind"`
	DeviceID       string                 `json:"device_id"`
	Port           string                 `json:"port"`
	BaudRate       int                    `json:"baud_rate"`
	ReadTimeout    time.Duration          `json:"read_timeout"`
	CommandTimeout time.Duration          `json:"command_timeout"`
	Options        map[string]interface{} `json:"options,omitempty"`
}
