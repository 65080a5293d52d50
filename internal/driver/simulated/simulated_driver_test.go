package simulated

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

type countingHandler struct {
	emg, imu int
}

func (h *countingHandler) OnEMG(driver.EMGSample) { h.emg++ }

func (h *countingHandler) OnIMU(driver.OrientationSample, driver.AccelerometerSample, driver.GyroscopeSample) {
	h.imu++
}

func newTestDriver(t *testing.T, options map[string]interface{}) (*SimulatedDriver, *time.Time) {
	t.Helper()
	session, err := NewSimulatedDriver(&driver.SessionConfig{
		Kind:        "simulated",
		DeviceID:    "sim",
		ReadTimeout: time.Millisecond,
		Options:     options,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSimulatedDriver() error = %v", err)
	}

	d := session.(*SimulatedDriver)
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, &now
}

func TestListenEmitsAtConfiguredRates(t *testing.T) {
	d, now := newTestDriver(t, map[string]interface{}{OptionEMGRate: 200, OptionIMURate: 50})
	handler := &countingHandler{}
	d.SetSampleHandler(handler)
	ctx := context.Background()

	if err := d.Connect(ctx, devicetypes.Identity{}, time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if n, err := d.Listen(ctx); n != 0 || err != nil {
		t.Errorf("Listen() before SetMode = %d, %v", n, err)
	}
	if err := d.SetMode(context.Background(), driver.EMGModeSend, driver.IMUModeSendData, driver.ClassifierModeDisabled); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}

	*now = now.Add(100 * time.Millisecond)
	n, err := d.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if handler.emg != 20 || handler.imu != 5 || n != 25 {
		t.Errorf("Listen() = %d, emg=%d imu=%d, want 25, 20, 5", n, handler.emg, handler.imu)
	}

	if n, _ := d.Listen(ctx); n != 0 {
		t.Errorf("Listen() with nothing due = %d", n)
	}
	if got := d.GetDeviceInfo().PacketsReceived; got != 25 {
		t.Errorf("PacketsReceived = %d, want 25", got)
	}
}

func TestListenDropsLink(t *testing.T) {
	d, now := newTestDriver(t, map[string]interface{}{OptionDropAfter: "1s"})
	ctx := context.Background()

	if err := d.Connect(ctx, devicetypes.Identity{}, time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	*now = now.Add(time.Second)

	_, err := d.Listen(ctx)
	if !errors.Is(err, driver.ErrLinkLost) {
		t.Fatalf("Listen() error = %v, want ErrLinkLost", err)
	}
	if d.Connected() {
		t.Error("Connected() = true after drop")
	}

	if err := d.Connect(ctx, devicetypes.Identity{}, time.Second); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if !d.Connected() {
		t.Error("Connected() = false after reconnect")
	}
}

func TestNewSimulatedDriverRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]interface{}
	}{
		{"zero rate", map[string]interface{}{OptionEMGRate: 0}},
		{"bad type", map[string]interface{}{OptionIMURate: "fast"}},
		{"bad duration", map[string]interface{}{OptionDropAfter: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimulatedDriver(&driver.SessionConfig{Options: tt.options}, zap.NewNop())
			if err == nil {
				t.Error("NewSimulatedDriver() accepted bad options")
			}
		})
	}
}

func TestConnectHonoursCancelledContext(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Connect(ctx, devicetypes.Identity{}, time.Second); !driver.IsConnectErrorKind(err, driver.Timeout) {
		t.Errorf("Connect() error = %v", err)
	}
}
