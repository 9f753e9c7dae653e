package types

import (
	"time"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

// InstallationState represents the lifecycle status of an installation session.
type InstallationState string

const (
	InstallationStateNotStarted InstallationState = "not_started"
	InstallationStateInProgress InstallationState = "in_progress"
	InstallationStateCompleted  InstallationState = "completed"
	InstallationStateFailed     InstallationState = "failed"
)

// IsTerminal returns true once the session can no longer be mutated.
func (s InstallationState) IsTerminal() bool {
	return s == InstallationStateCompleted || s == InstallationStateFailed
}

// StageError is a structured error recorded against a session. Recoverable
// failures may have been retried before the error was recorded.
type StageError struct {
	StageID     string `json:"stage_id"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// InstallationSession is the record of one provisioning run. It is mutated
// exclusively through the session store; everything handed out of the API is
// a snapshot copy.
type InstallationSession struct {
	Status           InstallationState `json:"status"`
	CurrentStageID   string            `json:"current_stage"`
	CurrentStageName string            `json:"current_stage_name"`
	StageProgress    float64           `json:"stage_progress"`
	OverallProgress  float64           `json:"overall_progress"`
	Logs             []string          `json:"logs"`
	Errors           []StageError      `json:"errors"`
	StartTime        *time.Time        `json:"start_time"`
	EndTime          *time.Time        `json:"end_time"`
	ResultSummary    map[string]string `json:"result_summary,omitempty"`
}

// ElapsedSeconds returns the total run duration once the session is
// terminal, and nil while it is still running or has not started.
func (s InstallationSession) ElapsedSeconds() *float64 {
	if s.StartTime == nil || s.EndTime == nil {
		return nil
	}
	elapsed := s.EndTime.Sub(*s.StartTime).Seconds()
	return &elapsed
}

// InstallStatusResponse is the point-in-time query response for a session.
type InstallStatusResponse struct {
	InstallationSession
	ElapsedTime *float64 `json:"elapsed_time"`
}

// NewInstallStatusResponse derives the query response from a session snapshot.
func NewInstallStatusResponse(session InstallationSession) InstallStatusResponse {
	return InstallStatusResponse{
		InstallationSession: session,
		ElapsedTime:         session.ElapsedSeconds(),
	}
}

// InstallRequest is the full configuration bundle required by all stages of
// a provisioning run.
type InstallRequest struct {
	UserConfig    appconfig.Config   `json:"user_config"`
	NetworkConfig appconfig.Network  `json:"network_config"`
	StorageConfig appconfig.Storage  `json:"storage_config"`
	Services      appconfig.Services `json:"services_config"`
}
