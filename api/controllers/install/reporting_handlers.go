package install

import (
	"context"

	"github.com/mediastackhq/mediastack/api/internal/statemachine"
)

func (c *InstallController) registerReportingHandlers(sm statemachine.Interface) {
	sm.RegisterEventHandler(StateRunning, c.reportRunStarted)
	sm.RegisterEventHandler(StateSucceeded, c.reportRunSucceeded)
	sm.RegisterEventHandler(StateFailed, c.reportRunFailed)
}

func (c *InstallController) reportRunStarted(_ context.Context, _, _ statemachine.State) {
	c.logger.Info("Provisioning run started")
}

func (c *InstallController) reportRunSucceeded(_ context.Context, _, _ statemachine.State) {
	c.logger.Info("Provisioning run succeeded")
}

func (c *InstallController) reportRunFailed(_ context.Context, _, _ statemachine.State) {
	session, err := c.sessionManager.Get()
	if err != nil {
		c.logger.WithError(err).Error("failed to report provisioning run failed")
		return
	}
	if len(session.Errors) > 0 {
		last := session.Errors[len(session.Errors)-1]
		c.logger.Errorf("Provisioning run failed at stage %s: %s", last.StageID, last.Message)
		return
	}
	c.logger.Error("Provisioning run failed")
}
