// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConnection implements Transport over a serial port
type SerialConnection struct {
	config     *SerialConfig
	port       serial.Port
	openPort   func(name string, mode *serial.Mode) (serial.Port, error)
	logger     *zap.Logger
	mutex      sync.RWMutex
	isOpen     bool
	buffer     []byte
	stats      ProtocolStats
	statsMutex sync.Mutex
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config:   config,
		openPort: serial.Open,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: stopBits(sc.config.StopBits),
	}

	switch sc.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := sc.openPort(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	// Every read returns after at most this long
	if err := port.SetReadTimeout(sc.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	// Drop whatever the dongle queued before we attached
	if err := port.ResetInputBuffer(); err != nil {
		sc.logger.Debug("Failed to reset input buffer", zap.Error(err))
	}

	sc.port = port
	sc.isOpen = true
	sc.updateStats(func(s *ProtocolStats) {
		s.IsConnected = true
		s.LastActivity = time.Now()
	})

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.updateStats(func(s *ProtocolStats) { s.IsConnected = false })

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.updateStats(func(s *ProtocolStats) { s.ErrorCount++ })
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	duration := time.Since(startTime)
	sc.updateStats(func(s *ProtocolStats) {
		s.BytesWritten += int64(len(data))
		s.OperationCount++
		s.LastActivity = time.Now()
		if s.AverageLatency == 0 {
			s.AverageLatency = duration
		} else {
			s.AverageLatency = (s.AverageLatency + duration) / 2
		}
	})

	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads whatever the port delivers within the read timeout. The
// returned slice is only valid until the next call.
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil, ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cap(sc.buffer) < maxBytes {
		sc.buffer = make([]byte, maxBytes)
	}
	buffer := sc.buffer[:maxBytes]

	n, err := sc.port.Read(buffer)
	if err != nil {
		sc.updateStats(func(s *ProtocolStats) { s.ErrorCount++ })
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}

	if n > 0 {
		sc.updateStats(func(s *ProtocolStats) {
			s.BytesRead += int64(n)
			s.OperationCount++
			s.LastActivity = time.Now()
		})
	}

	return buffer[:n], nil
}

// Name returns the port name
func (sc *SerialConnection) Name() string {
	return sc.config.Port
}

// GetStats returns a copy of the transport statistics
func (sc *SerialConnection) GetStats() ProtocolStats {
	sc.statsMutex.Lock()
	defer sc.statsMutex.Unlock()
	return sc.stats
}

func (sc *SerialConnection) updateStats(fn func(*ProtocolStats)) {
	sc.statsMutex.Lock()
	fn(&sc.stats)
	sc.statsMutex.Unlock()
}

func stopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
