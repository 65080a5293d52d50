// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"myo-recorder/internal/discovery"
)

// Scanner lists serial ports and marks known dongles
type Scanner struct {
	logger    *zap.Logger
	dongles   *DongleDatabase
	listPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		dongles:   NewDongleDatabase(),
		listPorts: enumerator.GetDetailedPortsList,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan enumerates serial ports
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	startTime := time.Now()

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	discovered := make([]*discovery.DiscoveredDevice, 0, len(ports))
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}
		discovered = append(discovered, s.describe(port))
	}

	s.logger.Debug("Serial scan completed",
		zap.Int("ports_found", len(discovered)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return discovered, nil
}

func (s *Scanner) describe(port *enumerator.PortDetails) *discovery.DiscoveredDevice {
	device := &discovery.DiscoveredDevice{
		Port:         port.Name,
		IsUSB:        port.IsUSB,
		VendorID:     port.VID,
		ProductID:    port.PID,
		SerialNumber: port.SerialNumber,
		Product:      port.Product,
		Confidence:   0.1,
	}

	if !port.IsUSB {
		return device
	}
	device.Confidence = 0.3

	if _, product, ok := s.dongles.Lookup(port.VID, port.PID); ok {
		device.Model = product.Model
		device.DeviceKind = product.DeviceKind
		device.Confidence = product.Confidence
		s.logger.Debug("Known dongle identified",
			zap.String("port", port.Name),
			zap.String("model", product.Model),
		)
	}
	return device
}
