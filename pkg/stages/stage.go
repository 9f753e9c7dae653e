// Package stages defines the ordered provisioning stages of an installation
// run and the executors that perform each one.
package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

// Stage is one entry of the registry. Stages are pure data; the matching
// Executor carries the behavior.
type Stage struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Weight      float64 `json:"weight"`
}

// Handle is the narrow surface an executor gets to report back through. It
// deliberately hides the session and the broadcaster.
type Handle interface {
	// Log appends a line to the session log.
	Log(format string, args ...any)
	// SetProgress reports progress through the current stage, 0 to 100.
	SetProgress(progress float64)
	// Config returns the configuration bundle for this run.
	Config() appconfig.Bundle
}

// Executor performs the work of a single stage.
type Executor interface {
	Stage() Stage
	Execute(ctx context.Context, handle Handle) error
}

// Failure is a stage error that knows whether a retry could help. A plain
// error returned from an executor is treated as unrecoverable.
type Failure struct {
	Err         error
	Recoverable bool
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Recoverablef builds a retryable stage failure.
func Recoverablef(format string, args ...any) error {
	return &Failure{Err: fmt.Errorf(format, args...), Recoverable: true}
}

// RecoverableErr wraps an existing error as a retryable stage failure.
func RecoverableErr(err error) error {
	return &Failure{Err: err, Recoverable: true}
}

// IsRecoverable reports whether err is a stage failure marked retryable.
func IsRecoverable(err error) bool {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Recoverable
	}
	return false
}
