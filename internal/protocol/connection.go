// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// DefaultSerialConfig returns the settings of a BLED112 dongle on port
func DefaultSerialConfig(port string) *SerialConfig {
	return &SerialConfig{
		Port:        port,
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		ReadTimeout: 10 * time.Millisecond,
	}
}
