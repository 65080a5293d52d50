// internal/model/state.go
package model

// ConnectionState represents the state of the device link
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "DISCONNECTED"
	ConnectionConnecting   ConnectionState = "CONNECTING"
	ConnectionConnected    ConnectionState = "CONNECTED"
	ConnectionFaulted      ConnectionState = "FAULTED"
)

// AcquisitionState represents the state of the acquisition loop
type AcquisitionState string

const (
	AcquisitionIdle       AcquisitionState = "IDLE"
	AcquisitionConnecting AcquisitionState = "CONNECTING"
	AcquisitionStreaming  AcquisitionState = "STREAMING"
	AcquisitionFaulted    AcquisitionState = "FAULTED"
	AcquisitionStopping   AcquisitionState = "STOPPING"
	AcquisitionTerminated AcquisitionState = "TERMINATED"
)

// IsActive reports whether the loop is still running
func (s AcquisitionState) IsActive() bool {
	return s != AcquisitionTerminated
}

// FaultReason names what ended a streaming epoch
type FaultReason string

const (
	FaultConnect   FaultReason = "CONNECT"
	FaultReconnect FaultReason = "RECONNECT_EXHAUSTED"
	FaultWatchdog  FaultReason = "WATCHDOG_TIMEOUT"
	FaultTransport FaultReason = "TRANSPORT"
	FaultLinkLost  FaultReason = "LINK_LOST"
	FaultIO        FaultReason = "IO"
)
