// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// CreateTransport creates the serial transport to a dongle after
// validating its configuration
func CreateTransport(config *SerialConfig, logger *zap.Logger) (Transport, error) {
	if err := ValidateSerialConfig(config); err != nil {
		return nil, err
	}

	logger.Debug("Creating serial transport",
		zap.String("port", config.Port),
		zap.Int("baud_rate", config.BaudRate),
		zap.Duration("read_timeout", config.ReadTimeout),
	)

	return NewSerialConnection(config, logger), nil
}

// ValidateSerialConfig validates serial configuration
func ValidateSerialConfig(config *SerialConfig) error {
	if config == nil || config.Port == "" {
		return fmt.Errorf("serial port is required")
	}

	validRates := []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}
	valid := false
	for _, rate := range validRates {
		if config.BaudRate == rate {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid baud rate: %d", config.BaudRate)
	}

	if config.DataBits != 7 && config.DataBits != 8 {
		return fmt.Errorf("invalid data bits: %d", config.DataBits)
	}

	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	return nil
}
