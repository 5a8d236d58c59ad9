// README: Scheduled eviction of idle and terminal tracking sessions.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"waypoint/internal/modules/tracking"
)

// SessionSweepJob periodically evicts sessions that have gone idle or whose
// order reached a terminal status past the grace period.
type SessionSweepJob struct {
	registry tracking.Registry
	spec     string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewSessionSweepJob(registry tracking.Registry, spec string, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		registry: registry,
		spec:     spec,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With("component", "session_sweep_job"),
	}
}

func (j *SessionSweepJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, func() {
		evicted := j.registry.Sweep(time.Now())
		if evicted > 0 {
			j.logger.InfoContext(context.Background(), "evicted sessions", "count", evicted)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.InfoContext(context.Background(), "session sweep job started", "spec", j.spec)
	return nil
}

func (j *SessionSweepJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "session sweep job stopped")
}
