// internal/driver/simulated/simulated_driver.go
package simulated

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"myo-recorder/internal/utils"
	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

// Options understood in driver.SessionConfig.Options
const (
	OptionEMGRate   = "emg_rate"
	OptionIMURate   = "imu_rate"
	OptionDropAfter = "drop_after"
)

const (
	defaultEMGRate  = 200
	defaultIMURate  = 50
	defaultPollWait = 10 * time.Millisecond
	emgAmplitude    = 60
)

// SimulatedDriver is a driver.Session that synthesizes armband data
type SimulatedDriver struct {
	logger   *utils.DeviceLogger
	handler  driver.SampleHandler
	now      func() time.Time
	pollWait time.Duration

	emgRate   int
	imuRate   int
	dropAfter time.Duration

	mu          sync.RWMutex
	connected   bool
	deviceInfo  driver.DeviceInfo
	connectedAt time.Time
	emgSent     int64
	imuSent     int64
	streaming   bool
}

// NewSimulatedDriver creates a synthetic session
func NewSimulatedDriver(config *driver.SessionConfig, logger *zap.Logger) (driver.Session, error) {
	d := &SimulatedDriver{
		logger:   utils.NewDeviceLogger(logger, config.DeviceID, "simulated"),
		now:      time.Now,
		pollWait: defaultPollWait,
		emgRate:  defaultEMGRate,
		imuRate:  defaultIMURate,
		deviceInfo: driver.DeviceInfo{
			Kind:            "simulated",
			Address:         "00:00:00:00:00:00",
			Port:            "simulated",
			FirmwareVersion: "1.5.1970",
			HardwareRev:     2,
		},
	}

	if config.ReadTimeout > 0 {
		d.pollWait = config.ReadTimeout
	}

	var err error
	if d.emgRate, err = intOption(config.Options, OptionEMGRate, d.emgRate); err != nil {
		return nil, err
	}
	if d.imuRate, err = intOption(config.Options, OptionIMURate, d.imuRate); err != nil {
		return nil, err
	}
	if d.dropAfter, err = durationOption(config.Options, OptionDropAfter, 0); err != nil {
		return nil, err
	}
	if d.emgRate <= 0 || d.imuRate <= 0 {
		return nil, fmt.Errorf("simulated rates must be positive: emg=%d imu=%d", d.emgRate, d.imuRate)
	}

	return d, nil
}

// SetSampleHandler sets the receiver of synthesized samples
func (d *SimulatedDriver) SetSampleHandler(handler driver.SampleHandler) {
	d.handler = handler
}

// Connect always succeeds unless ctx is done
func (d *SimulatedDriver) Connect(ctx context.Context, identity devicetypes.Identity, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return driver.NewConnectError(driver.Timeout, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = true
	d.streaming = false
	d.connectedAt = d.now()
	d.emgSent = 0
	d.imuSent = 0
	if identity.HasAddress() {
		d.deviceInfo.Address = identity.String()
	}
	d.deviceInfo.ConnectedAt = d.connectedAt
	d.deviceInfo.PacketsReceived = 0

	d.logger.LogConnection("connect", true, nil)
	return nil
}

// Disconnect marks the session disconnected
func (d *SimulatedDriver) Disconnect() error {
	d.mu.Lock()
	d.connected = false
	d.streaming = false
	d.mu.Unlock()
	return nil
}

// Connected reports whether the synthetic link is up
func (d *SimulatedDriver) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// SetSleepMode is accepted while connected
func (d *SimulatedDriver) SetSleepMode(ctx context.Context, mode driver.SleepMode) error {
	if !d.Connected() {
		return fmt.Errorf("not connected")
	}
	return nil
}

// SetMode starts streaming when EMG or IMU data is requested
func (d *SimulatedDriver) SetMode(ctx context.Context, emg driver.EMGMode, imu driver.IMUMode, classifier driver.ClassifierMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}
	d.streaming = emg != driver.EMGModeNone || imu != driver.IMUModeNone
	return nil
}

// Listen emits every sample due since connect and waits one poll
// interval when none is due
func (d *SimulatedDriver) Listen(ctx context.Context) (int, error) {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return 0, &driver.TransportError{Op: "listen", Err: fmt.Errorf("not connected")}
	}

	elapsed := d.now().Sub(d.connectedAt)
	if d.dropAfter > 0 && elapsed >= d.dropAfter {
		d.connected = false
		d.streaming = false
		d.mu.Unlock()
		d.logger.Warn("Simulated link dropped", zap.Duration("after", elapsed))
		return 0, &driver.TransportError{Op: "listen", Err: driver.ErrLinkLost}
	}

	if !d.streaming {
		d.mu.Unlock()
		d.wait(ctx)
		return 0, nil
	}

	emgDue := int64(elapsed.Seconds() * float64(d.emgRate))
	imuDue := int64(elapsed.Seconds() * float64(d.imuRate))
	emgFrom, imuFrom := d.emgSent, d.imuSent
	d.emgSent, d.imuSent = emgDue, imuDue
	n := int(emgDue-emgFrom) + int(imuDue-imuFrom)
	d.deviceInfo.PacketsReceived += int64(n)
	handler := d.handler
	d.mu.Unlock()

	if n == 0 {
		d.wait(ctx)
		return 0, nil
	}

	if handler != nil {
		for i := emgFrom; i < emgDue; i++ {
			handler.OnEMG(emgSample(float64(i) / float64(d.emgRate)))
		}
		for i := imuFrom; i < imuDue; i++ {
			handler.OnIMU(imuSample(float64(i) / float64(d.imuRate)))
		}
	}

	return n, nil
}

// GetDeviceInfo returns the synthetic device description
func (d *SimulatedDriver) GetDeviceInfo() *driver.DeviceInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info := d.deviceInfo
	return &info
}

func (d *SimulatedDriver) wait(ctx context.Context) {
	timer := time.NewTimer(d.pollWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// emgSample puts a phase-shifted sine on each electrode
func emgSample(t float64) driver.EMGSample {
	var s driver.EMGSample
	for ch := range s {
		s[ch] = int(emgAmplitude * math.Sin(2*math.Pi*(1.5*t+float64(ch)/8)))
	}
	return s
}

// imuSample rotates slowly around z
func imuSample(t float64) (driver.OrientationSample, driver.AccelerometerSample, driver.GyroscopeSample) {
	half := 0.25 * math.Pi * t
	orientation := driver.OrientationSample{float32(math.Cos(half)), 0, 0, float32(math.Sin(half))}
	acceleration := driver.AccelerometerSample{0, 0, 1}
	gyroscope := driver.GyroscopeSample{0, 0, 45}
	return orientation, acceleration, gyroscope
}

func intOption(options map[string]interface{}, key string, fallback int) (int, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, raw)
	}
}

func durationOption(options map[string]interface{}, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, raw)
	}
}
