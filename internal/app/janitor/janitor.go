// Package janitor runs periodic maintenance: read-notification pruning and
// expired-session sweeps.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfchat/wolfchat/internal/app/services/notifications"
	"github.com/wolfchat/wolfchat/internal/app/services/sessions"
	"github.com/wolfchat/wolfchat/internal/logging"
)

// DefaultNotificationRetention is how long read notifications are kept.
const DefaultNotificationRetention = 7 * 24 * time.Hour

// Janitor schedules background maintenance jobs.
type Janitor struct {
	cron      *cron.Cron
	notifs    *notifications.Service
	sessions  *sessions.Service
	retention time.Duration
	log       *logging.Logger
}

// New builds a janitor over the given services.
func New(notifs *notifications.Service, sessionsSvc *sessions.Service, retention time.Duration, log *logging.Logger) *Janitor {
	if log == nil {
		log = logging.NewDefault("janitor")
	}
	if retention <= 0 {
		retention = DefaultNotificationRetention
	}
	return &Janitor{
		cron:      cron.New(),
		notifs:    notifs,
		sessions:  sessionsSvc,
		retention: retention,
		log:       log,
	}
}

// Start registers the jobs and begins the schedule.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("@hourly", j.pruneNotifications); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@every 15m", j.sweepSessions); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("janitor started")
	return nil
}

// Stop halts the schedule and waits for running jobs to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("janitor stopped")
}

func (j *Janitor) pruneNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pruned, err := j.notifs.PruneRead(ctx, j.retention)
	if err != nil {
		j.log.WithError(err).Error("notification prune failed")
		return
	}
	if pruned > 0 {
		j.log.WithField("pruned", pruned).Info("pruned read notifications")
	}
}

func (j *Janitor) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := j.sessions.SweepExpired(ctx)
	if err != nil {
		j.log.WithError(err).Error("session sweep failed")
		return
	}
	if swept > 0 {
		j.log.WithField("swept", swept).Info("removed expired sessions")
	}
}
