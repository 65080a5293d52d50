// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"myo-recorder/internal/driver/myo"
	"myo-recorder/internal/driver/simulated"
)

// Device kinds
const (
	KindMyo       = "myo"
	KindSimulated = "simulated"
)

// RegisterDefaultDrivers registers all default session drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registry.Register(KindMyo, myo.NewMyoDriver)
	registry.Register(KindSimulated, simulated.NewSimulatedDriver)

	logger.Info("Default drivers registered", zap.Strings("kinds", registry.ListKinds()))
}
