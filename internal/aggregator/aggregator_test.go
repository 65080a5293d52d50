package aggregator

import (
	"sync"
	"testing"
	"time"

	"myo-recorder/pkg/driver"
)

func TestSnapshotBeforeAnySample(t *testing.T) {
	a := New()
	now := time.Now()
	row := a.Snapshot(now)

	if !row.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", row.Timestamp, now)
	}
	if row.EMG != (driver.EMGSample{}) || row.Orientation != (driver.OrientationSample{}) ||
		row.Acceleration != (driver.AccelerometerSample{}) || row.Gyroscope != (driver.GyroscopeSample{}) {
		t.Errorf("Snapshot() before samples = %+v, want zeros", row)
	}
}

func TestLatestValueWins(t *testing.T) {
	a := New()
	a.OnEMG(driver.EMGSample{1, 2, 3, 4, 5, 6, 7, 8})
	a.OnEMG(driver.EMGSample{-1, -2, -3, -4, -5, -6, -7, -8})
	a.OnIMU(
		driver.OrientationSample{1, 0, 0, 0},
		driver.AccelerometerSample{0, 0, 1},
		driver.GyroscopeSample{0.5, -0.5, 0},
	)

	row := a.Snapshot(time.Now())
	if row.EMG != (driver.EMGSample{-1, -2, -3, -4, -5, -6, -7, -8}) {
		t.Errorf("EMG = %v", row.EMG)
	}
	if row.Orientation != (driver.OrientationSample{1, 0, 0, 0}) {
		t.Errorf("Orientation = %v", row.Orientation)
	}
	if row.Acceleration != (driver.AccelerometerSample{0, 0, 1}) {
		t.Errorf("Acceleration = %v", row.Acceleration)
	}
	if row.Gyroscope != (driver.GyroscopeSample{0.5, -0.5, 0}) {
		t.Errorf("Gyroscope = %v", row.Gyroscope)
	}

	emg, imu := a.Counts()
	if emg != 2 || imu != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", emg, imu)
	}
}

func TestKindsAreIndependent(t *testing.T) {
	a := New()
	a.UpdateGyroscope(driver.GyroscopeSample{9, 9, 9})

	row := a.Snapshot(time.Now())
	if row.EMG != (driver.EMGSample{}) {
		t.Errorf("EMG should still be zero, got %v", row.EMG)
	}
	if row.Gyroscope != (driver.GyroscopeSample{9, 9, 9}) {
		t.Errorf("Gyroscope = %v", row.Gyroscope)
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.UpdateEMG(driver.EMGSample{1, 1, 1, 1, 1, 1, 1, 1})
	a.UpdateOrientation(driver.OrientationSample{1, 0, 0, 0})
	a.Reset()

	row := a.Snapshot(time.Now())
	if row.EMG != (driver.EMGSample{}) || row.Orientation != (driver.OrientationSample{}) {
		t.Errorf("Snapshot() after Reset = %+v, want zeros", row)
	}
}

// Every writer stores a value whose elements are all equal; a torn read
// would show mixed elements.
func TestConcurrentUpdatesNeverTear(t *testing.T) {
	a := New()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			f := float32(v)
			for {
				select {
				case <-stop:
					return
				default:
				}
				a.OnEMG(driver.EMGSample{v, v, v, v, v, v, v, v})
				a.OnIMU(driver.OrientationSample{f, f, f, f}, driver.AccelerometerSample{f, f, f}, driver.GyroscopeSample{f, f, f})
			}
		}(w)
	}

	for i := 0; i < 10000; i++ {
		row := a.Snapshot(time.Now())
		for j := 1; j < len(row.EMG); j++ {
			if row.EMG[j] != row.EMG[0] {
				t.Fatalf("torn EMG sample %v", row.EMG)
			}
		}
		for j := 1; j < len(row.Orientation); j++ {
			if row.Orientation[j] != row.Orientation[0] {
				t.Fatalf("torn orientation sample %v", row.Orientation)
			}
		}
		for j := 1; j < len(row.Gyroscope); j++ {
			if row.Gyroscope[j] != row.Gyroscope[0] {
				t.Fatalf("torn gyroscope sample %v", row.Gyroscope)
			}
		}
	}

	close(stop)
	wg.Wait()
}
