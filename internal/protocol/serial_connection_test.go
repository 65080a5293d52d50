package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// fakePort records writes and serves queued reads; methods the transport
// does not call fall through to the nil embedded interface
type fakePort struct {
	serial.Port
	reads       [][]byte
	written     []byte
	readTimeout time.Duration
	closed      bool
	readErr     error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(b, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestConnection(port *fakePort) (*SerialConnection, *serial.Mode) {
	var gotMode serial.Mode
	sc := NewSerialConnection(DefaultSerialConfig("/dev/ttyACM0"), zap.NewNop())
	sc.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		gotMode = *mode
		return port, nil
	}
	return sc, &gotMode
}

func TestSerialConnectionLifecycle(t *testing.T) {
	port := &fakePort{reads: [][]byte{{0x80, 0x02}}}
	sc, mode := newTestConnection(port)
	ctx := context.Background()

	if _, err := sc.Read(ctx, 16); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Read() before Open = %v, want ErrNotOpen", err)
	}

	if err := sc.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if mode.BaudRate != 115200 || mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
		t.Errorf("mode = %+v", *mode)
	}
	if port.readTimeout != 10*time.Millisecond {
		t.Errorf("read timeout = %s, want 10ms", port.readTimeout)
	}

	if err := sc.Write(ctx, []byte{0x00, 0x00, 0x06, 0x04}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := sc.Read(ctx, 16)
	if err != nil || len(data) != 2 {
		t.Fatalf("Read() = % X, %v", data, err)
	}

	// A read that times out yields no bytes and no error
	data, err = sc.Read(ctx, 16)
	if err != nil || len(data) != 0 {
		t.Fatalf("idle Read() = % X, %v", data, err)
	}

	stats := sc.GetStats()
	if stats.BytesWritten != 4 || stats.BytesRead != 2 || !stats.IsConnected {
		t.Errorf("stats = %+v", stats)
	}

	if err := sc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.closed || sc.IsOpen() {
		t.Error("port should be closed")
	}
	if err := sc.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestSerialConnectionReadError(t *testing.T) {
	port := &fakePort{readErr: errors.New("device unplugged")}
	sc, _ := newTestConnection(port)
	if err := sc.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := sc.Read(context.Background(), 8); err == nil {
		t.Fatal("Read() should surface port errors")
	}
	if sc.GetStats().ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", sc.GetStats().ErrorCount)
	}
}

func TestSerialConnectionOpenCancelled(t *testing.T) {
	sc, _ := newTestConnection(&fakePort{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sc.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() = %v, want context.Canceled", err)
	}
}

func TestValidateSerialConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SerialConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*SerialConfig) {}},
		{name: "no port", mutate: func(c *SerialConfig) { c.Port = "" }, wantErr: true},
		{name: "odd baud", mutate: func(c *SerialConfig) { c.BaudRate = 12345 }, wantErr: true},
		{name: "bad data bits", mutate: func(c *SerialConfig) { c.DataBits = 5 }, wantErr: true},
		{name: "no read timeout", mutate: func(c *SerialConfig) { c.ReadTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSerialConfig("/dev/ttyACM0")
			tt.mutate(cfg)
			if err := ValidateSerialConfig(cfg); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSerialConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
