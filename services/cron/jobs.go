package cron

import (
	"fmt"
	"time"

	"github.com/sahilchouksey/agent-chat-api/model"
	"github.com/sahilchouksey/agent-chat-api/services"
)

// ReconcileDefaultAssistants re-applies the environment-supplied default
// assistant overrides (system role, params, avatars) for every user that owns
// at least one session. Per-user failures are logged by the service and do
// not abort the sweep.
func (m *CronManager) ReconcileDefaultAssistants() {
	jobName := "reconcile_default_assistants"

	var userIDs []string
	if err := m.db.Model(&model.Session{}).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		m.logJobError(jobName, err)
		return
	}

	for _, userID := range userIDs {
		agents := services.NewAgentService(m.db, userID)
		if err := agents.UpdateDefaultAssistantsConfig(); err != nil {
			m.logJobError(jobName, err)
			return
		}
		if err := agents.UpdateDefaultAssistantsAvatars(); err != nil {
			m.logJobError(jobName, err)
			return
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("reconciled default assistants for %d users", len(userIDs)))
}

// CleanupOldJobLogs removes cron job logs older than 30 days
func (m *CronManager) CleanupOldJobLogs() {
	jobName := "cleanup_cron_logs"

	cutoff := time.Now().AddDate(0, 0, -30)
	result := m.db.Where("created_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d old job logs", result.RowsAffected))
}
