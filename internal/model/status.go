// internal/model/status.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EpochInfo describes one recording epoch
type EpochInfo struct {
	ID          uuid.UUID  `json:"id"`
	Path        string     `json:"path"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	RowsWritten int64      `json:"rows_written"`
}

// AcquisitionStatus is a point-in-time view of the acquisition engine
type AcquisitionStatus struct {
	RunID             uuid.UUID        `json:"run_id"`
	State             AcquisitionState `json:"state"`
	ConnectionState   ConnectionState  `json:"connection_state"`
	Identity          string           `json:"identity,omitempty"`
	OutputDir         string           `json:"output_dir"`
	StartedAt         time.Time        `json:"started_at"`
	CurrentEpoch      *EpochInfo       `json:"current_epoch,omitempty"`
	EpochCount        int              `json:"epoch_count"`
	TotalRows         int64            `json:"total_rows"`
	FaultCount        int              `json:"fault_count"`
	FaultStreak       int              `json:"fault_streak"`
	ReconnectAttempts int              `json:"reconnect_attempts"`
	LastError         string           `json:"last_error,omitempty"`
	LastFaultAt       *time.Time       `json:"last_fault_at,omitempty"`
	LastActivityAge   string           `json:"last_activity_age,omitempty"`
}
