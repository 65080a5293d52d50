// internal/service/acquisition_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"myo-recorder/internal/aggregator"
	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
	"myo-recorder/internal/recording"
	"myo-recorder/internal/utils"
	"myo-recorder/internal/watchdog"
	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

// ErrRetriesExhausted is returned by Run when max_outer_retries is set
// and that many bounded reconnects failed in a row
var ErrRetriesExhausted = errors.New("acquisition retries exhausted")

const eventSource = "acquisition"

// EventPublisher receives lifecycle events
type EventPublisher interface {
	Publish(event model.Event)
}

// AcquisitionOptions configures one acquisition run
type AcquisitionOptions struct {
	OutputDir    string
	FilePrefix   string
	Identity     devicetypes.Identity
	SyncInterval time.Duration
	Acquisition  config.AcquisitionConfig
}

// AcquisitionService drives the acquisition loop: connect, stream rows
// into one recording epoch per connection, and recover from faults until
// the context is cancelled
type AcquisitionService struct {
	manager    *ConnectionManager
	aggregator *aggregator.Aggregator
	watchdog   *watchdog.Watchdog
	publisher  EventPublisher
	options    AcquisitionOptions
	logger     *utils.ServiceLogger
	baseLogger *zap.Logger

	sink   *recording.Sink
	opened bool

	mu     sync.RWMutex
	status model.AcquisitionStatus
}

// NewAcquisitionService creates the acquisition loop around manager
func NewAcquisitionService(
	manager *ConnectionManager,
	options AcquisitionOptions,
	publisher EventPublisher,
	logger *zap.Logger,
) *AcquisitionService {
	return &AcquisitionService{
		manager:    manager,
		aggregator: aggregator.New(),
		watchdog:   watchdog.New(options.Acquisition.WatchdogTimeout),
		publisher:  publisher,
		options:    options,
		logger:     utils.NewServiceLogger(logger, "acquisition-service"),
		baseLogger: logger,
		status: model.AcquisitionStatus{
			RunID:     uuid.New(),
			State:     model.AcquisitionIdle,
			Identity:  options.Identity.String(),
			OutputDir: options.OutputDir,
		},
	}
}

// Run executes the acquisition loop until ctx is cancelled. It returns nil
// on a graceful stop, the open error when the first recording file cannot
// be created, and ErrRetriesExhausted in terminal failure mode.
func (s *AcquisitionService) Run(ctx context.Context) error {
	cfg := &s.options.Acquisition
	s.manager.Session().SetSampleHandler(s.aggregator)

	s.mu.Lock()
	s.status.StartedAt = time.Now()
	s.mu.Unlock()
	defer s.shutdown()

	streak := 0
	exhausted := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(model.AcquisitionConnecting)
		var err error
		if streak <= 1 {
			err = s.manager.Connect(ctx, s.options.Identity)
		} else {
			err = s.manager.Reconnect(ctx, s.options.Identity)
		}
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			reason := model.FaultConnect
			if errors.Is(err, ErrReconnectExhausted) {
				reason = model.FaultReconnect
				exhausted++
				s.logger.Error("Reconnect exhausted", zap.Error(err), zap.Int("outer_retries", exhausted))
				s.publish(model.EventReconnectExhausted, model.SeverityError, model.ReconnectExhaustedEventData{
					Attempts:     s.options.Acquisition.MaxReconnectAttempts,
					ErrorMessage: err.Error(),
					OuterRetries: exhausted,
				})
				if cfg.MaxOuterRetries > 0 && exhausted >= cfg.MaxOuterRetries {
					s.recordFault(reason, err, streak+1, 0)
					return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
				}
			}

			streak++
			if !s.fault(ctx, reason, err, streak) {
				return nil
			}
			continue
		}

		streak = 0
		exhausted = 0

		if err := s.openEpoch(); err != nil {
			if !s.opened {
				s.logger.Error("Failed to open first recording file", zap.Error(err))
				return err
			}
			streak++
			if !s.fault(ctx, model.FaultIO, err, streak) {
				return nil
			}
			continue
		}

		reason, err := s.stream(ctx)
		s.closeEpoch(err)
		if err == nil {
			return nil
		}

		streak++
		if !s.fault(ctx, reason, err, streak) {
			return nil
		}
	}
}

// stream polls the session and writes rows until a fault or ctx is done.
// A nil error means the loop was stopped.
func (s *AcquisitionService) stream(ctx context.Context) (model.FaultReason, error) {
	cfg := &s.options.Acquisition
	session := s.manager.Session()

	s.aggregator.Reset()
	s.watchdog.Update()
	s.setState(model.AcquisitionStreaming)

	var lastWrite time.Time
	for {
		if ctx.Err() != nil {
			return "", nil
		}

		if !s.manager.IsConnected() {
			return model.FaultLinkLost, &driver.TransportError{Op: "poll", Err: driver.ErrLinkLost}
		}

		n, err := session.Listen(ctx)
		if ctx.Err() != nil {
			return "", nil
		}
		if err != nil {
			if errors.Is(err, driver.ErrLinkLost) {
				return model.FaultLinkLost, err
			}
			return model.FaultTransport, err
		}

		if err := s.watchdog.Check(); err != nil {
			return model.FaultWatchdog, err
		}
		if n > 0 {
			s.watchdog.Update()
		}

		if now := time.Now(); now.Sub(lastWrite) >= cfg.WriteInterval {
			if err := s.sink.WriteRow(s.aggregator.Snapshot(now)); err != nil {
				return model.FaultIO, err
			}
			lastWrite = now
			s.countRow()
		}

		if err := sleepContext(ctx, cfg.IdleDelay); err != nil {
			return "", nil
		}
	}
}

// fault records the failure, releases the device and waits out the
// cooldown. It reports false when ctx was cancelled during the wait.
func (s *AcquisitionService) fault(ctx context.Context, reason model.FaultReason, err error, streak int) bool {
	cooldown := Cooldown(&s.options.Acquisition, streak)
	s.recordFault(reason, err, streak, cooldown)

	s.manager.MarkFaulted()
	s.manager.Disconnect()

	s.logger.Info("Waiting before next connection attempt",
		zap.Duration("cooldown", cooldown),
		zap.Int("streak", streak),
	)
	if err := sleepContext(ctx, cooldown); err != nil {
		return false
	}
	s.setState(model.AcquisitionIdle)
	return true
}

func (s *AcquisitionService) recordFault(reason model.FaultReason, err error, streak int, cooldown time.Duration) {
	now := time.Now()

	s.mu.Lock()
	s.status.FaultCount++
	s.status.FaultStreak = streak
	s.status.LastError = err.Error()
	s.status.LastFaultAt = &now
	s.mu.Unlock()

	s.logger.Warn("Acquisition fault",
		zap.String("reason", string(reason)),
		zap.Error(err),
		zap.Int("streak", streak),
	)
	s.setState(model.AcquisitionFaulted)
	s.publish(model.EventFault, model.SeverityWarning, model.FaultEventData{
		Reason:       reason,
		ErrorMessage: err.Error(),
		Streak:       streak,
		Cooldown:     cooldown.String(),
	})
}

// openEpoch opens a new recording file for the current connection
func (s *AcquisitionService) openEpoch() error {
	openedAt := time.Now()
	path := recording.EpochPath(s.options.OutputDir, s.options.FilePrefix, s.namingIdentity(), openedAt)

	sink, err := recording.Open(path, recording.Options{SyncInterval: s.options.SyncInterval})
	if err != nil {
		return err
	}
	s.sink = sink
	s.opened = true

	epoch := &model.EpochInfo{
		ID:       uuid.New(),
		Path:     path,
		OpenedAt: openedAt,
	}

	s.mu.Lock()
	s.status.CurrentEpoch = epoch
	s.status.EpochCount++
	s.mu.Unlock()

	utils.NewEpochLogger(s.baseLogger, epoch.ID.String(), path).Start(zap.Int("epoch", s.epochCount()))
	s.publish(model.EventEpochOpened, model.SeverityInfo, model.EpochEventData{
		EpochID: epoch.ID,
		Path:    path,
	})
	return nil
}

// closeEpoch closes the current recording file. cause is the fault that
// ended the epoch, nil on a stop.
func (s *AcquisitionService) closeEpoch(cause error) {
	if s.sink == nil {
		return
	}

	closeErr := s.sink.Close()
	rows := s.sink.Rows()
	s.sink = nil

	closedAt := time.Now()
	s.mu.Lock()
	epoch := s.status.CurrentEpoch
	s.status.CurrentEpoch = nil
	s.mu.Unlock()
	if epoch == nil {
		return
	}
	epoch.ClosedAt = &closedAt

	epochLogger := utils.NewEpochLogger(s.baseLogger, epoch.ID.String(), epoch.Path)
	data := model.EpochEventData{EpochID: epoch.ID, Path: epoch.Path, Rows: rows}
	switch {
	case cause != nil:
		epochLogger.Fault(cause, rows)
		data.Error = cause.Error()
	case closeErr != nil:
		epochLogger.Fault(closeErr, rows)
		data.Error = closeErr.Error()
	default:
		epochLogger.Finish(rows)
	}
	s.publish(model.EventEpochClosed, model.SeverityInfo, data)
}

// shutdown releases the device and any open file on every exit path
func (s *AcquisitionService) shutdown() {
	s.setState(model.AcquisitionStopping)
	s.closeEpoch(nil)
	s.manager.Disconnect()
	s.setState(model.AcquisitionTerminated)
}

// namingIdentity prefers the address the session reports, so that files
// recorded through a discovered armband still carry its short id
func (s *AcquisitionService) namingIdentity() devicetypes.Identity {
	if s.options.Identity.HasAddress() {
		return s.options.Identity
	}
	info := s.manager.Session().GetDeviceInfo()
	if info == nil || info.Address == "" {
		return s.options.Identity
	}
	addr, err := devicetypes.ParseAddress(info.Address)
	if err != nil {
		return s.options.Identity
	}
	return devicetypes.Identity{Kind: devicetypes.IdentityAddress, Address: addr}
}

// Status returns a snapshot of the acquisition state
func (s *AcquisitionService) Status() model.AcquisitionStatus {
	s.mu.RLock()
	status := s.status
	if status.CurrentEpoch != nil {
		epoch := *status.CurrentEpoch
		status.CurrentEpoch = &epoch
	}
	s.mu.RUnlock()

	status.ConnectionState = s.manager.State()
	status.ReconnectAttempts = s.manager.ReconnectAttempts()
	if status.State == model.AcquisitionStreaming {
		status.LastActivityAge = s.watchdog.Elapsed().Round(time.Millisecond).String()
	}
	return status
}

// State returns the current loop state
func (s *AcquisitionService) State() model.AcquisitionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.State
}

func (s *AcquisitionService) setState(state model.AcquisitionState) {
	s.mu.Lock()
	from := s.status.State
	s.status.State = state
	s.mu.Unlock()

	if from == state {
		return
	}
	s.logger.Info("Acquisition state changed",
		zap.String("from", string(from)),
		zap.String("to", string(state)),
	)
	s.publish(model.EventStateChanged, model.SeverityInfo, model.StateChangedEventData{From: from, To: state})
}

func (s *AcquisitionService) countRow() {
	s.mu.Lock()
	s.status.TotalRows++
	if s.status.CurrentEpoch != nil {
		s.status.CurrentEpoch.RowsWritten++
	}
	s.mu.Unlock()
}

func (s *AcquisitionService) epochCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.EpochCount
}

func (s *AcquisitionService) publish(eventType model.EventType, severity string, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.NewEvent(eventType, eventSource, severity, data))
}

// DeviceInfo returns what the session knows about the device
func (s *AcquisitionService) DeviceInfo() *driver.DeviceInfo {
	return s.manager.Session().GetDeviceInfo()
}
