// pkg/driver/interfaces.go
package driver

import (
	"context"
	"time"

	"myo-recorder/pkg/devicetypes"
)

// Session is the interface every armband driver implements. A session owns
// its transport and is driven from a single goroutine.
type Session interface {
	// Connection management
	Connect(ctx context.Context, identity devicetypes.Identity, timeout time.Duration) error
	Disconnect() error
	Connected() bool

	// Handshake. Both calls give up when ctx is done.
	SetSleepMode(ctx context.Context, mode SleepMode) error
	SetMode(ctx context.Context, emg EMGMode, imu IMUMode, classifier ClassifierMode) error

	// Streaming. Listen runs one bounded poll cycle and returns the number
	// of packets the transport delivered.
	Listen(ctx context.Context) (int, error)
	SetSampleHandler(handler SampleHandler)

	// Device information
	GetDeviceInfo() *DeviceInfo
}

// SampleHandler receives decoded samples from Listen
type SampleHandler interface {
	OnEMG(sample EMGSample)
	OnIMU(orientation OrientationSample, acceleration AccelerometerSample, gyroscope GyroscopeSample)
}
