// internal/service/backoff.go
package service

import (
	"context"
	"math"
	"time"

	"myo-recorder/internal/config"
)

// Cooldown returns how long the acquisition loop waits after its
// streak-th consecutive fault. The first fault uses the short cooldown;
// later ones use the reconnect cooldown grown by the multiplier and capped.
func Cooldown(cfg *config.AcquisitionConfig, streak int) time.Duration {
	if streak <= 1 {
		return cfg.FaultCooldown
	}

	delay := float64(cfg.ReconnectCooldown) * math.Pow(cfg.CooldownMultiplier, float64(streak-2))
	if cfg.MaxCooldown > 0 && delay > float64(cfg.MaxCooldown) {
		return cfg.MaxCooldown
	}
	return time.Duration(delay)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
