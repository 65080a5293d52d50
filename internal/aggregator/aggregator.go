// internal/aggregator/aggregator.go
package aggregator

import (
	"sync/atomic"
	"time"

	"myo-recorder/pkg/driver"
)

// Row is one recorded line: the wall-clock timestamp plus the latest value
// of every sample kind
type Row struct {
	Timestamp    time.Time
	EMG          driver.EMGSample
	Orientation  driver.OrientationSample
	Acceleration driver.AccelerometerSample
	Gyroscope    driver.GyroscopeSample
}

// Aggregator keeps the most recent sample of each kind. Each kind is
// published atomically, so a snapshot never sees a half-written value,
// although kinds may come from different device packets.
type Aggregator struct {
	emg          atomic.Pointer[driver.EMGSample]
	orientation  atomic.Pointer[driver.OrientationSample]
	acceleration atomic.Pointer[driver.AccelerometerSample]
	gyroscope    atomic.Pointer[driver.GyroscopeSample]

	emgCount atomic.Int64
	imuCount atomic.Int64
}

// New creates an aggregator with every kind zeroed
func New() *Aggregator {
	return &Aggregator{}
}

// UpdateEMG replaces the EMG slot
func (a *Aggregator) UpdateEMG(sample driver.EMGSample) {
	a.emg.Store(&sample)
	a.emgCount.Add(1)
}

// UpdateOrientation replaces the orientation slot
func (a *Aggregator) UpdateOrientation(sample driver.OrientationSample) {
	a.orientation.Store(&sample)
}

// UpdateAcceleration replaces the accelerometer slot
func (a *Aggregator) UpdateAcceleration(sample driver.AccelerometerSample) {
	a.acceleration.Store(&sample)
}

// UpdateGyroscope replaces the gyroscope slot
func (a *Aggregator) UpdateGyroscope(sample driver.GyroscopeSample) {
	a.gyroscope.Store(&sample)
}

// OnEMG implements driver.SampleHandler
func (a *Aggregator) OnEMG(sample driver.EMGSample) {
	a.UpdateEMG(sample)
}

// OnIMU implements driver.SampleHandler
func (a *Aggregator) OnIMU(orientation driver.OrientationSample, acceleration driver.AccelerometerSample, gyroscope driver.GyroscopeSample) {
	a.UpdateOrientation(orientation)
	a.UpdateAcceleration(acceleration)
	a.UpdateGyroscope(gyroscope)
	a.imuCount.Add(1)
}

// Snapshot returns the latest value of every kind, zeros for kinds that
// have not been seen yet. It never blocks.
func (a *Aggregator) Snapshot(now time.Time) Row {
	row := Row{Timestamp: now}
	if p := a.emg.Load(); p != nil {
		row.EMG = *p
	}
	if p := a.orientation.Load(); p != nil {
		row.Orientation = *p
	}
	if p := a.acceleration.Load(); p != nil {
		row.Acceleration = *p
	}
	if p := a.gyroscope.Load(); p != nil {
		row.Gyroscope = *p
	}
	return row
}

// Reset zeroes every kind. It is called at the start of each epoch.
func (a *Aggregator) Reset() {
	a.emg.Store(nil)
	a.orientation.Store(nil)
	a.acceleration.Store(nil)
	a.gyroscope.Store(nil)
}

// Counts returns how many EMG and IMU updates have been received
func (a *Aggregator) Counts() (emg, imu int64) {
	return a.emgCount.Load(), a.imuCount.Load()
}
