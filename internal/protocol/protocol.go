// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"
)

// ErrNotOpen is returned by I/O on a transport that is not open
var ErrNotOpen = errors.New("transport not open")

// Transport is the byte link between the host and the radio dongle
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read waits at most the configured read timeout
	// and returns an empty slice when nothing arrived.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Diagnostics
	Name() string
	GetStats() ProtocolStats
}

// ProtocolStats provides transport-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
