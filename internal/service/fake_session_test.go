package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

var errNoDongle = errors.New("no such file or directory")

// fakeSession is a scripted driver.Session. connect and listen decide the
// outcome of the n-th call (1-based).
type fakeSession struct {
	mu          sync.Mutex
	connect     func(ctx context.Context, n int) error
	listen      func(n int) (int, error)
	setModeErr  error
	handler     driver.SampleHandler
	connected   bool
	connects    int
	listens     int
	disconnects int
	sleepModes  []driver.SleepMode
	modes       int
}

func (f *fakeSession) Connect(ctx context.Context, identity devicetypes.Identity, timeout time.Duration) error {
	f.mu.Lock()
	f.connects++
	n := f.connects
	fn := f.connect
	f.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(ctx, n)
	}

	f.mu.Lock()
	f.connected = err == nil
	f.mu.Unlock()
	return err
}

func (f *fakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) SetSleepMode(ctx context.Context, mode driver.SleepMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleepModes = append(f.sleepModes, mode)
	return nil
}

func (f *fakeSession) SetMode(ctx context.Context, emg driver.EMGMode, imu driver.IMUMode, classifier driver.ClassifierMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes++
	return f.setModeErr
}

func (f *fakeSession) Listen(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.listens++
	n := f.listens
	fn := f.listen
	handler := f.handler
	f.mu.Unlock()

	time.Sleep(time.Millisecond)
	if fn != nil {
		packets, err := fn(n)
		if err != nil {
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
		}
		return packets, err
	}

	if handler != nil {
		handler.OnEMG(driver.EMGSample{1, 2, 3, 4, 5, 6, 7, 8})
	}
	return 1, nil
}

func (f *fakeSession) SetSampleHandler(handler driver.SampleHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *fakeSession) GetDeviceInfo() *driver.DeviceInfo {
	return &driver.DeviceInfo{Kind: "fake", Address: "C8:2F:84:E5:96:F7"}
}

func (f *fakeSession) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

// failFirst fails the first n connects
func failFirst(n int) func(context.Context, int) error {
	return func(ctx context.Context, call int) error {
		if call <= n {
			return driver.NewConnectError(driver.TransportUnavailable, errNoDongle)
		}
		return nil
	}
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) find(match func(model.Event) bool) (model.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, event := range p.events {
		if match(event) {
			return event, true
		}
	}
	return model.Event{}, false
}

func ofType(eventType model.EventType) func(model.Event) bool {
	return func(e model.Event) bool { return e.Type == eventType }
}

func faultWith(reason model.FaultReason) func(model.Event) bool {
	return func(e model.Event) bool {
		data, ok := e.Data.(model.FaultEventData)
		return e.Type == model.EventFault && ok && data.Reason == reason
	}
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fastAcquisition shrinks every loop duration to milliseconds
func fastAcquisition() config.AcquisitionConfig {
	return config.AcquisitionConfig{
		WriteInterval:        time.Millisecond,
		IdleDelay:            time.Millisecond,
		WatchdogTimeout:      time.Minute,
		FaultCooldown:        time.Millisecond,
		ReconnectCooldown:    2 * time.Millisecond,
		CooldownMultiplier:   1,
		MaxCooldown:          2 * time.Millisecond,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Millisecond,
		ReconnectSettle:      0,
	}
}

func fastReconnect() ReconnectConfig {
	return ReconnectConfig{MaxAttempts: 5, Delay: time.Millisecond}
}
