// Package jobs runs the periodic maintenance tasks of the server process.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"alcyxob/coach-scheduler/internal/service"
)

// topicRefreshTimeout bounds one nightly pass over the workshop topics.
const topicRefreshTimeout = 4 * time.Minute

// TopicRefresher recomputes the active flag of workshop topics.
type TopicRefresher interface {
	RefreshActive(ctx context.Context) (*service.RefreshSummary, error)
}

// Scheduler owns the cron runner. A run still in progress makes the next tick skip.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers the topic refresh job on spec (standard 5-field cron syntax,
// evaluated in loc). An empty spec registers nothing.
func NewScheduler(spec string, loc *time.Location, refresher TopicRefresher, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "jobs")
	cronLogger := slogCronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if spec != "" {
		if _, err := c.AddFunc(spec, func() { RunTopicRefresh(context.Background(), refresher, logger) }); err != nil {
			return nil, err
		}
		logger.Info("scheduled workshop topic refresh", "schedule", spec, "location", loc.String())
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Jobs is the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// RunTopicRefresh performs one refresh pass and logs its outcome.
func RunTopicRefresh(ctx context.Context, refresher TopicRefresher, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, topicRefreshTimeout)
	defer cancel()

	started := time.Now()
	summary, err := refresher.RefreshActive(ctx)
	if err != nil {
		logger.Error("workshop topic refresh failed", "error", err, "duration", time.Since(started))
		return
	}
	logger.Info("workshop topic refresh done",
		"checked", summary.Checked, "changed", summary.Changed, "failed", summary.Failed,
		"duration", time.Since(started))
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
