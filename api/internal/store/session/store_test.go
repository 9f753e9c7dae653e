package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastackhq/mediastack/api/types"
)

func TestBegin(t *testing.T) {
	s := NewMemoryStore()

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, types.InstallationStateNotStarted, session.Status)
	assert.Nil(t, session.StartTime)

	require.NoError(t, s.Begin())

	session, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, types.InstallationStateInProgress, session.Status)
	require.NotNil(t, session.StartTime)
}

func TestBegin_ConflictsWithRunningSession(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())

	err := s.Begin()
	require.ErrorIs(t, err, types.ErrInstallationInProgress)
}

func TestBegin_ReplacesTerminalSession(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())
	require.NoError(t, s.AppendLog("old run"))
	require.NoError(t, s.Fail())

	require.NoError(t, s.Begin())

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, types.InstallationStateInProgress, session.Status)
	assert.Empty(t, session.Logs)
	assert.Empty(t, session.Errors)
	assert.Zero(t, session.OverallProgress)
	assert.Nil(t, session.EndTime)
}

func TestSetProgress_Monotonic(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())
	require.NoError(t, s.SetCurrentStage("docker_setup", "Setting up Docker"))

	require.NoError(t, s.SetProgress(50, 20))
	require.NoError(t, s.SetProgress(30, 10)) // ignored, would regress

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, float64(50), session.StageProgress)
	assert.Equal(t, float64(20), session.OverallProgress)
}

func TestSetProgress_Clamped(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())

	require.NoError(t, s.SetProgress(150, 120))

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, float64(100), session.StageProgress)
	assert.Equal(t, float64(100), session.OverallProgress)
}

func TestSetCurrentStage_ResetsStageProgress(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())
	require.NoError(t, s.SetCurrentStage("pre_check", "System Compatibility Check"))
	require.NoError(t, s.SetProgress(100, 5))

	require.NoError(t, s.SetCurrentStage("config_setup", "Basic Configuration Setup"))

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "config_setup", session.CurrentStageID)
	assert.Equal(t, "Basic Configuration Setup", session.CurrentStageName)
	assert.Zero(t, session.StageProgress)
	// Overall progress carries over between stages.
	assert.Equal(t, float64(5), session.OverallProgress)
}

func TestAppendLog_Ordered(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())

	require.NoError(t, s.AppendLog("first"))
	require.NoError(t, s.AppendLog("second"))
	require.NoError(t, s.AppendLog("third"))

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, session.Logs)
}

func TestAppendLog_AppendOnly(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())

	const total = 5000
	for i := 0; i < total; i++ {
		require.NoError(t, s.AppendLog(fmt.Sprintf("line %d", i)))
	}

	session, err := s.Get()
	require.NoError(t, err)
	require.Len(t, session.Logs, total)
	assert.Equal(t, "line 0", session.Logs[0])
	assert.Equal(t, fmt.Sprintf("line %d", total-1), session.Logs[total-1])
}

func TestComplete(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())

	summary := map[string]string{"jellyfin": "http://host:8096"}
	require.NoError(t, s.Complete(summary))

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, types.InstallationStateCompleted, session.Status)
	assert.Equal(t, float64(100), session.OverallProgress)
	assert.Equal(t, summary, session.ResultSummary)
	require.NotNil(t, session.EndTime)
	require.NotNil(t, session.ElapsedSeconds())
}

func TestTerminalSessionIsImmutable(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())
	require.NoError(t, s.Fail())

	assert.Error(t, s.AppendLog("too late"))
	assert.Error(t, s.SetProgress(10, 10))
	assert.Error(t, s.SetCurrentStage("x", "X"))
	assert.Error(t, s.AppendError(types.StageError{StageID: "x"}))
	assert.Error(t, s.Complete(nil))
	assert.Error(t, s.Fail())

	session, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, types.InstallationStateFailed, session.Status)
	assert.Empty(t, session.Logs)
}

func TestGet_ReturnsSnapshotCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Begin())
	require.NoError(t, s.AppendLog("original"))

	session, err := s.Get()
	require.NoError(t, err)
	session.Logs[0] = "mutated"

	fresh, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Logs[0])
}
