// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DeviceScanner finds candidate dongle ports
type DeviceScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredDevice, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredDevice represents a port found by a scanner
type DiscoveredDevice struct {
	Port         string  `json:"port"`
	IsUSB        bool    `json:"is_usb"`
	VendorID     string  `json:"vendor_id,omitempty"`
	ProductID    string  `json:"product_id,omitempty"`
	SerialNumber string  `json:"serial_number,omitempty"`
	Product      string  `json:"product,omitempty"`
	Model        string  `json:"model,omitempty"`
	DeviceKind   string  `json:"device_kind,omitempty"`
	Confidence   float64 `json:"confidence"` // 0.0-1.0
}

// IsDongle reports whether the port was identified as a supported dongle
func (d *DiscoveredDevice) IsDongle() bool {
	return d.DeviceKind != ""
}

// ScannerManager manages all device scanners
type ScannerManager struct {
	scanners map[string]DeviceScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a device scanner
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Debug("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. Results are ordered by confidence,
// then port name.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredDevice, error) {
	var allDevices []*DiscoveredDevice

	for scannerType, scanner := range sm.scanners {
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		devices, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allDevices = append(allDevices, devices...)
		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("devices_found", len(devices)),
		)
	}

	sort.SliceStable(allDevices, func(i, j int) bool {
		if allDevices[i].Confidence != allDevices[j].Confidence {
			return allDevices[i].Confidence > allDevices[j].Confidence
		}
		return allDevices[i].Port < allDevices[j].Port
	})
	return allDevices, nil
}

// FindDongle returns the port of the most likely dongle
func (sm *ScannerManager) FindDongle(ctx context.Context) (string, error) {
	devices, err := sm.ScanAll(ctx)
	if err != nil {
		return "", err
	}

	for _, device := range devices {
		if device.IsDongle() {
			sm.logger.Info("Dongle found",
				zap.String("port", device.Port),
				zap.String("model", device.Model),
			)
			return device.Port, nil
		}
	}
	return "", fmt.Errorf("no supported dongle found among %d ports", len(devices))
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	sort.Strings(available)
	return available
}
