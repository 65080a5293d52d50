// internal/recording/sink.go
package recording

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"myo-recorder/internal/aggregator"
)

// Header is the fixed column layout of every recording file
var Header = []string{
	"Timestamp",
	"EMG1", "EMG2", "EMG3", "EMG4", "EMG5", "EMG6", "EMG7", "EMG8",
	"OrientationW", "OrientationX", "OrientationY", "OrientationZ",
	"AccX", "AccY", "AccZ",
	"GyroX", "GyroY", "GyroZ",
}

// IOError is a failure to open, write or close a recording file
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("recording %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Sink appends rows to one CSV file
type Sink struct {
	path         string
	file         *os.File
	buffer       *bufio.Writer
	writer       *csv.Writer
	record       []string
	syncInterval time.Duration
	lastSync     time.Time
	rows         int64
	closed       bool
	mutex        sync.Mutex
}

// Options tune durability of a sink
type Options struct {
	// SyncInterval forces an fsync at most this often; zero syncs only on Close
	SyncInterval time.Duration
}

// Open opens path for appending, creating it if needed. The header is
// written only when the file is empty.
func Open(path string, opts Options) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}

	buffer := bufio.NewWriter(file)
	sink := &Sink{
		path:         path,
		file:         file,
		buffer:       buffer,
		writer:       csv.NewWriter(buffer),
		record:       make([]string, len(Header)),
		syncInterval: opts.SyncInterval,
		lastSync:     time.Now(),
	}

	if info.Size() == 0 {
		if err := sink.writeRecord(Header); err != nil {
			file.Close()
			return nil, err
		}
	}

	return sink, nil
}

// WriteRow formats one row and flushes it to the operating system
func (s *Sink) WriteRow(row aggregator.Row) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return &IOError{Op: "write", Path: s.path, Err: os.ErrClosed}
	}

	FormatRow(row, s.record)
	if err := s.writeRecord(s.record); err != nil {
		return err
	}
	s.rows++

	if s.syncInterval > 0 && time.Since(s.lastSync) >= s.syncInterval {
		if err := s.file.Sync(); err != nil {
			return &IOError{Op: "sync", Path: s.path, Err: err}
		}
		s.lastSync = time.Now()
	}

	return nil
}

func (s *Sink) writeRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// Close flushes, syncs and closes the file. Calling it twice is harmless.
func (s *Sink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.writer.Flush()
	var firstErr error
	if err := s.writer.Error(); err != nil {
		firstErr = &IOError{Op: "flush", Path: s.path, Err: err}
	}
	if err := s.file.Sync(); err != nil && firstErr == nil {
		firstErr = &IOError{Op: "sync", Path: s.path, Err: err}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = &IOError{Op: "close", Path: s.path, Err: err}
	}
	return firstErr
}

// Path returns the file path of the sink
func (s *Sink) Path() string {
	return s.path
}

// Rows returns how many data rows were written through this sink
func (s *Sink) Rows() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rows
}

// FormatRow renders row into dst, which must hold len(Header) fields.
// Floats use the shortest representation that round-trips a float32.
func FormatRow(row aggregator.Row, dst []string) {
	dst[0] = strconv.FormatInt(row.Timestamp.UnixMilli(), 10)

	i := 1
	for _, v := range row.EMG {
		dst[i] = strconv.Itoa(v)
		i++
	}
	for _, v := range row.Orientation {
		dst[i] = formatFloat(v)
		i++
	}
	for _, v := range row.Acceleration {
		dst[i] = formatFloat(v)
		i++
	}
	for _, v := range row.Gyroscope {
		dst[i] = formatFloat(v)
		i++
	}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
