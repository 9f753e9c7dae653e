package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// stateMachine manages the state transitions for a provisioning run
type stateMachine struct {
	currentState          State
	validStateTransitions map[State][]State
	eventHandlers         map[State]EventHandler
	lock                  *lock
	logger                logrus.FieldLogger
	mu                    sync.RWMutex
}

type Option func(*stateMachine)

// WithLogger sets the logger used to report transition and handler failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(sm *stateMachine) {
		sm.logger = logger
	}
}

// New creates a new state machine starting in the given state with the given valid state
// transitions.
func New(currentState State, validStateTransitions map[State][]State, opts ...Option) *stateMachine {
	sm := &stateMachine{
		currentState:          currentState,
		validStateTransitions: validStateTransitions,
		eventHandlers:         make(map[State]EventHandler),
	}

	for _, opt := range opts {
		opt(sm)
	}

	if sm.logger == nil {
		sm.logger = logrus.New()
	}

	return sm
}

func (sm *stateMachine) CurrentState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.currentState
}

func (sm *stateMachine) IsFinalState() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.validStateTransitions[sm.currentState]) == 0
}

func (sm *stateMachine) AcquireLock() (Lock, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.lock != nil {
		return nil, fmt.Errorf("lock already acquired")
	}

	sm.lock = &lock{
		release: func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			sm.lock = nil
		},
	}

	return sm.lock, nil
}

func (sm *stateMachine) IsLockAcquired() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.lock != nil
}

func (sm *stateMachine) RegisterEventHandler(targetState State, handler EventHandlerFunc, options ...EventHandlerOption) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.eventHandlers[targetState] = NewEventHandler(handler, options...)
}

func (sm *stateMachine) UnregisterEventHandler(targetState State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.eventHandlers, targetState)
}

func (sm *stateMachine) ValidateTransition(lock Lock, nextState State) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.lock == nil {
		return fmt.Errorf("lock not acquired")
	} else if sm.lock != lock {
		return fmt.Errorf("lock mismatch")
	}

	if !sm.isValidTransition(sm.currentState, nextState) {
		return fmt.Errorf("invalid transition from %s to %s", sm.currentState, nextState)
	}

	return nil
}

func (sm *stateMachine) Transition(lock Lock, nextState State) error {
	fromState, err := sm.transition(lock, nextState)
	if err != nil {
		return err
	}

	sm.mu.RLock()
	handler, ok := sm.eventHandlers[nextState]
	sm.mu.RUnlock()

	if ok {
		if err := handler.TriggerHandler(context.Background(), fromState, nextState); err != nil {
			sm.logger.WithError(err).Errorf("event handler failed for transition from %s to %s", fromState, nextState)
		}
	}

	return nil
}

func (sm *stateMachine) transition(lock Lock, nextState State) (State, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.lock == nil {
		return "", fmt.Errorf("lock not acquired")
	} else if sm.lock != lock {
		return "", fmt.Errorf("lock mismatch")
	}

	if !sm.isValidTransition(sm.currentState, nextState) {
		return "", fmt.Errorf("invalid transition from %s to %s", sm.currentState, nextState)
	}

	fromState := sm.currentState
	sm.currentState = nextState

	return fromState, nil
}

func (sm *stateMachine) isValidTransition(currentState State, newState State) bool {
	validTransitions, ok := sm.validStateTransitions[currentState]
	if !ok {
		return false
	}
	return slices.Contains(validTransitions, newState)
}

type lock struct {
	release func()
	mu      sync.Mutex
}

func (l *lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.release != nil {
		l.release()
		l.release = nil
	}
}
