// internal/service/connection_manager.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"myo-recorder/internal/model"
	"myo-recorder/internal/utils"
	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

// ErrReconnectExhausted is matched by every ReconnectError
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ReconnectError is returned when the bounded reconnect gives up
type ReconnectError struct {
	Attempts int
	Last     error
}

func (e *ReconnectError) Error() string {
	return fmt.Sprintf("reconnect exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ReconnectError) Is(target error) bool { return target == ErrReconnectExhausted }

func (e *ReconnectError) Unwrap() error { return e.Last }

// ReconnectConfig bounds the reconnect retry loop
type ReconnectConfig struct {
	MaxAttempts int           // attempts before giving up (default: 5)
	Delay       time.Duration // wait between failed attempts (default: 10s)
	Settle      time.Duration // wait after disconnect before connecting (default: 1s)
}

// DefaultReconnectConfig returns default reconnect configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 5,
		Delay:       10 * time.Second,
		Settle:      1 * time.Second,
	}
}

// ConnectionManager owns the lifecycle of one device session
type ConnectionManager struct {
	session        driver.Session
	connectTimeout time.Duration
	reconnect      ReconnectConfig
	logger         *utils.DeviceLogger

	mu                sync.RWMutex
	state             model.ConnectionState
	reconnectAttempts int
}

// NewConnectionManager creates a connection manager for session
func NewConnectionManager(
	session driver.Session,
	deviceID string,
	connectTimeout time.Duration,
	reconnect ReconnectConfig,
	logger *zap.Logger,
) *ConnectionManager {
	kind := "unknown"
	if info := session.GetDeviceInfo(); info != nil && info.Kind != "" {
		kind = info.Kind
	}

	return &ConnectionManager{
		session:        session,
		connectTimeout: connectTimeout,
		reconnect:      reconnect,
		logger:         utils.NewDeviceLogger(logger, deviceID, kind),
		state:          model.ConnectionDisconnected,
	}
}

// Connect opens the session and configures streaming. The manager is
// Connected only after the handshake succeeded.
func (cm *ConnectionManager) Connect(ctx context.Context, identity devicetypes.Identity) error {
	cm.setState(model.ConnectionConnecting)
	cm.logger.Info("Connecting to device",
		zap.String("identity", identity.String()),
		zap.Duration("timeout", cm.connectTimeout),
	)

	connectCtx, cancel := context.WithTimeout(ctx, cm.connectTimeout)
	defer cancel()

	if err := cm.session.Connect(connectCtx, identity, cm.connectTimeout); err != nil {
		cm.setState(model.ConnectionDisconnected)
		err = classifyConnectError(connectCtx, err)
		cm.logger.LogConnection("connect", false, err)
		return err
	}

	if err := cm.handshake(connectCtx); err != nil {
		cm.Disconnect()
		err = driver.NewConnectError(driver.HandshakeRejected, err)
		cm.logger.LogConnection("handshake", false, err)
		return err
	}

	cm.setState(model.ConnectionConnected)
	cm.logger.LogConnection("connect", true, nil)
	return nil
}

// handshake keeps the armband awake and enables EMG and IMU streaming
func (cm *ConnectionManager) handshake(ctx context.Context) error {
	if err := cm.session.SetSleepMode(ctx, driver.SleepModeNeverSleep); err != nil {
		return err
	}
	return cm.session.SetMode(ctx, driver.EMGModeSend, driver.IMUModeSendData, driver.ClassifierModeDisabled)
}

// Disconnect releases the session. It is safe in any state and only logs
// failures.
func (cm *ConnectionManager) Disconnect() {
	cm.logger.Info("Disconnecting from device", zap.String("state", string(cm.State())))

	if err := cm.session.Disconnect(); err != nil {
		cm.logger.Warn("Disconnect failed", zap.Error(err))
	}
	cm.setState(model.ConnectionDisconnected)
}

// Reconnect retries disconnect and connect up to MaxAttempts times
func (cm *ConnectionManager) Reconnect(ctx context.Context, identity devicetypes.Identity) error {
	var lastErr error

	for attempt := 1; attempt <= cm.reconnect.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cm.mu.Lock()
		cm.reconnectAttempts++
		cm.mu.Unlock()
		cm.logger.Info("Reconnect attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cm.reconnect.MaxAttempts),
		)

		cm.Disconnect()
		if err := sleepContext(ctx, cm.reconnect.Settle); err != nil {
			return err
		}

		lastErr = cm.Connect(ctx, identity)
		if lastErr == nil {
			return nil
		}
		cm.logger.LogAttempt("reconnect", attempt, cm.reconnect.MaxAttempts, lastErr)

		if attempt < cm.reconnect.MaxAttempts {
			if err := sleepContext(ctx, cm.reconnect.Delay); err != nil {
				return err
			}
		}
	}

	return &ReconnectError{Attempts: cm.reconnect.MaxAttempts, Last: lastErr}
}

// IsConnected reports whether the handshake completed and the session
// still reports a live link
func (cm *ConnectionManager) IsConnected() bool {
	return cm.State() == model.ConnectionConnected && cm.session.Connected()
}

// MarkFaulted records that the current link failed
func (cm *ConnectionManager) MarkFaulted() {
	cm.setState(model.ConnectionFaulted)
}

// State returns the current connection state
func (cm *ConnectionManager) State() model.ConnectionState {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.state
}

// ReconnectAttempts returns the number of reconnect attempts made so far
func (cm *ConnectionManager) ReconnectAttempts() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.reconnectAttempts
}

// Session returns the managed session
func (cm *ConnectionManager) Session() driver.Session {
	return cm.session
}

func (cm *ConnectionManager) setState(state model.ConnectionState) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.state != state {
		cm.logger.Debug("Connection state changed",
			zap.String("from", string(cm.state)),
			zap.String("to", string(state)),
		)
		cm.state = state
	}
}

// classifyConnectError makes sure a session failure carries a ConnectError kind
func classifyConnectError(ctx context.Context, err error) error {
	var cerr *driver.ConnectError
	if errors.As(err, &cerr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return driver.NewConnectError(driver.Timeout, err)
	}
	return driver.NewConnectError(driver.TransportUnavailable, err)
}
