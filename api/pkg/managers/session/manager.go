// Package session manages the installation session on behalf of the
// orchestrator: it owns progress accounting across stages and pushes a fresh
// snapshot to the broadcaster after every mutation.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/api/pkg/broadcast"
	sessionstore "github.com/mediastackhq/mediastack/api/internal/store/session"
	"github.com/mediastackhq/mediastack/api/types"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/stages"
)

const logTimeFormat = "2006-01-02 15:04:05"

var _ Manager = (*manager)(nil)

// Manager mutates the installation session on behalf of a provisioning run.
type Manager interface {
	Get() (types.InstallationSession, error)
	// Begin starts a fresh session for the given configuration bundle. It
	// returns types.ErrInstallationInProgress when a run is already active.
	Begin(bundle appconfig.Bundle) error
	// BeginStage moves the session onto a stage and resets stage progress.
	BeginStage(stage stages.Stage) error
	// CompleteStage credits the stage's full weight to overall progress.
	CompleteStage(stage stages.Stage) error
	// StageHandle returns the reporting surface handed to the stage's
	// executor.
	StageHandle(stage stages.Stage) stages.Handle
	Log(format string, args ...any)
	RecordError(stageErr types.StageError)
	Complete(summary map[string]string) error
	Fail() error
}

type manager struct {
	store       sessionstore.Store
	broadcaster broadcast.Broadcaster
	logger      logrus.FieldLogger

	mu              sync.Mutex
	bundle          appconfig.Bundle
	completedWeight float64
}

type ManagerOption func(*manager)

func WithStore(store sessionstore.Store) ManagerOption {
	return func(m *manager) {
		m.store = store
	}
}

func WithBroadcaster(broadcaster broadcast.Broadcaster) ManagerOption {
	return func(m *manager) {
		m.broadcaster = broadcaster
	}
}

func WithLogger(logger logrus.FieldLogger) ManagerOption {
	return func(m *manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager.
func NewManager(opts ...ManagerOption) Manager {
	m := &manager{}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = sessionstore.NewMemoryStore()
	}
	if m.broadcaster == nil {
		m.broadcaster = broadcast.NewBroadcaster()
	}
	if m.logger == nil {
		m.logger = logrus.New()
	}

	return m
}

func (m *manager) Get() (types.InstallationSession, error) {
	return m.store.Get()
}

func (m *manager) Begin(bundle appconfig.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Begin(); err != nil {
		return err
	}
	m.bundle = bundle
	m.completedWeight = 0

	m.publish()
	return nil
}

func (m *manager) BeginStage(stage stages.Stage) error {
	if err := m.store.SetCurrentStage(stage.ID, stage.DisplayName); err != nil {
		return err
	}
	m.Log("Entering stage: %s", stage.DisplayName)
	return nil
}

func (m *manager) CompleteStage(stage stages.Stage) error {
	m.mu.Lock()
	m.completedWeight += stage.Weight
	overall := m.completedWeight * 100
	m.mu.Unlock()

	if err := m.store.SetProgress(100, overall); err != nil {
		return err
	}
	m.Log("Completed stage: %s", stage.DisplayName)
	return nil
}

func (m *manager) StageHandle(stage stages.Stage) stages.Handle {
	return &stageHandle{manager: m, stage: stage}
}

func (m *manager) Log(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format(logTimeFormat), fmt.Sprintf(format, args...))
	if err := m.store.AppendLog(line); err != nil {
		m.logger.WithError(err).Debug("could not append session log")
		return
	}
	m.publish()
}

func (m *manager) RecordError(stageErr types.StageError) {
	if err := m.store.AppendError(stageErr); err != nil {
		m.logger.WithError(err).Debug("could not append session error")
		return
	}
	m.publish()
}

func (m *manager) Complete(summary map[string]string) error {
	if err := m.store.Complete(summary); err != nil {
		return err
	}
	m.publish()
	return nil
}

func (m *manager) Fail() error {
	if err := m.store.Fail(); err != nil {
		return err
	}
	m.publish()
	return nil
}

// setStageProgress folds a stage's own progress into overall progress using
// the stage weight on top of the weight already credited.
func (m *manager) setStageProgress(stage stages.Stage, progress float64) {
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}

	m.mu.Lock()
	overall := (m.completedWeight + stage.Weight*progress/100) * 100
	m.mu.Unlock()

	if err := m.store.SetProgress(progress, overall); err != nil {
		m.logger.WithError(err).Debug("could not update session progress")
		return
	}
	m.publish()
}

func (m *manager) publish() {
	session, err := m.store.Get()
	if err != nil {
		m.logger.WithError(err).Error("could not snapshot session for broadcast")
		return
	}
	m.broadcaster.Publish(session)
}

// stageHandle is the restricted surface executors report through.
type stageHandle struct {
	manager *manager
	stage   stages.Stage
}

var _ stages.Handle = (*stageHandle)(nil)

func (h *stageHandle) Log(format string, args ...any) {
	h.manager.Log(format, args...)
}

func (h *stageHandle) SetProgress(progress float64) {
	h.manager.setStageProgress(h.stage, progress)
}

func (h *stageHandle) Config() appconfig.Bundle {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.manager.bundle
}
