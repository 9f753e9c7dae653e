package install

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/types"
)

func TestGetStatus(t *testing.T) {
	controller := &installctl.MockController{}
	controller.On("Status", mock.Anything).Return(types.NewInstallStatusResponse(types.InstallationSession{
		Status:          types.InstallationStateInProgress,
		CurrentStageID:  "docker_setup",
		OverallProgress: 40,
	}), nil)

	h, err := New(WithController(controller))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/install/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status types.InstallStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "docker_setup", status.CurrentStageID)
	assert.Equal(t, float64(40), status.OverallProgress)
}

func TestPostRun_Accepted(t *testing.T) {
	controller := &installctl.MockController{}
	controller.On("Start", mock.Anything, mock.Anything).Return(nil)
	controller.On("Status", mock.Anything).Return(types.NewInstallStatusResponse(types.InstallationSession{
		Status: types.InstallationStateInProgress,
	}), nil)

	h, err := New(WithController(controller))
	require.NoError(t, err)

	body, err := json.Marshal(types.InstallRequest{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/install/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.PostRun(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	controller.AssertExpectations(t)
}

func TestPostRun_EmptyBodyUsesDefaults(t *testing.T) {
	controller := &installctl.MockController{}
	controller.On("Start", mock.Anything, types.InstallRequest{}).Return(nil)
	controller.On("Status", mock.Anything).Return(types.NewInstallStatusResponse(types.InstallationSession{
		Status: types.InstallationStateInProgress,
	}), nil)

	h, err := New(WithController(controller))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/install/run", nil)
	rec := httptest.NewRecorder()
	h.PostRun(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostRun_Conflict(t *testing.T) {
	controller := &installctl.MockController{}
	controller.On("Start", mock.Anything, mock.Anything).Return(types.NewConflictError(types.ErrInstallationInProgress))

	h, err := New(WithController(controller))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/install/run", nil)
	rec := httptest.NewRecorder()
	h.PostRun(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var apiErr types.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Contains(t, apiErr.Message, "already in progress")
}

func TestPostRun_BadJSON(t *testing.T) {
	controller := &installctl.MockController{}

	h, err := New(WithController(controller))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/install/run", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	h.PostRun(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	controller.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestGetStatus_ControllerError(t *testing.T) {
	controller := &installctl.MockController{}
	controller.On("Status", mock.Anything).Return(types.InstallStatusResponse{}, fmt.Errorf("store broken"))

	h, err := New(WithController(controller))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/install/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
