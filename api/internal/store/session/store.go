// Package session holds the in-memory record of the current installation
// run. Exactly one session exists at a time; starting a new run replaces a
// terminal one.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/mediastackhq/mediastack/api/types"
)

var _ Store = &memoryStore{}

// Store provides methods for storing and retrieving installation session state.
type Store interface {
	// Get returns a snapshot copy of the current session.
	Get() (types.InstallationSession, error)
	// Begin replaces a terminal (or never started) session with a fresh
	// in-progress one. It fails if a run is already in progress.
	Begin() error
	// SetCurrentStage moves the session to a stage and resets stage progress.
	SetCurrentStage(stageID, stageName string) error
	// SetProgress updates stage and overall progress. Overall progress never
	// decreases; stage progress never decreases within the same stage.
	SetProgress(stageProgress, overallProgress float64) error
	// AppendLog appends a line to the run log. Logs are append-only for the
	// lifetime of the run.
	AppendLog(line string) error
	AppendError(stageErr types.StageError) error
	// Complete marks the session completed with the final result summary.
	Complete(summary map[string]string) error
	// Fail marks the session failed.
	Fail() error
}

type memoryStore struct {
	session types.InstallationSession
	mu      sync.RWMutex
}

type StoreOption func(*memoryStore)

func WithSession(session types.InstallationSession) StoreOption {
	return func(s *memoryStore) {
		s.session = session
	}
}

// NewMemoryStore creates a new memory store holding a not-started session.
func NewMemoryStore(opts ...StoreOption) Store {
	s := &memoryStore{
		session: types.InstallationSession{
			Status: types.InstallationStateNotStarted,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *memoryStore) Get() (types.InstallationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var session types.InstallationSession
	if err := deepcopy.Copy(&session, &s.session); err != nil {
		return types.InstallationSession{}, err
	}

	return session, nil
}

func (s *memoryStore) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status == types.InstallationStateInProgress {
		return types.ErrInstallationInProgress
	}

	now := time.Now()
	s.session = types.InstallationSession{
		Status:    types.InstallationStateInProgress,
		StartTime: &now,
	}
	return nil
}

func (s *memoryStore) SetCurrentStage(stageID, stageName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	s.session.CurrentStageID = stageID
	s.session.CurrentStageName = stageName
	s.session.StageProgress = 0
	return nil
}

func (s *memoryStore) SetProgress(stageProgress, overallProgress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	if stageProgress > s.session.StageProgress {
		s.session.StageProgress = clampPercent(stageProgress)
	}
	if overallProgress > s.session.OverallProgress {
		s.session.OverallProgress = clampPercent(overallProgress)
	}
	return nil
}

func (s *memoryStore) AppendLog(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	s.session.Logs = append(s.session.Logs, line)
	return nil
}

func (s *memoryStore) AppendError(stageErr types.StageError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	s.session.Errors = append(s.session.Errors, stageErr)
	return nil
}

func (s *memoryStore) Complete(summary map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	now := time.Now()
	s.session.Status = types.InstallationStateCompleted
	s.session.OverallProgress = 100
	s.session.StageProgress = 100
	s.session.ResultSummary = summary
	s.session.EndTime = &now
	return nil
}

func (s *memoryStore) Fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	now := time.Now()
	s.session.Status = types.InstallationStateFailed
	s.session.EndTime = &now
	return nil
}

// mutable rejects writes against terminal or not yet started sessions.
func (s *memoryStore) mutable() error {
	if s.session.Status != types.InstallationStateInProgress {
		return fmt.Errorf("session is %s and cannot be modified", s.session.Status)
	}
	return nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
