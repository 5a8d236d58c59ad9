// README: Coordinates all scheduled background jobs.
package jobs

import (
	"log/slog"

	"waypoint/internal/modules/tracking"
)

type JobManager struct {
	sweepJob *SessionSweepJob
}

func NewJobManager(registry tracking.Registry, sweepSpec string, logger *slog.Logger) *JobManager {
	return &JobManager{
		sweepJob: NewSessionSweepJob(registry, sweepSpec, logger),
	}
}

func (jm *JobManager) StartAll() error {
	return jm.sweepJob.Start()
}

func (jm *JobManager) StopAll() {
	jm.sweepJob.Stop()
}
