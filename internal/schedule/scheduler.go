// Package schedule runs digest jobs on cron expressions, in UTC.
package schedule

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/job"
	"github.com/asagiri-dev/choukan/internal/trigger"
)

// Scheduler fires jobs through the same invocation gate as HTTP
// callers, so scheduled runs get identical logging, metrics, and panic
// handling.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger.Named("schedule"),
	}
}

// Add registers a job on the given cron expression.
func (s *Scheduler) Add(spec string, jb job.Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		event := trigger.Event{Source: trigger.ScheduledSource}
		resp := trigger.Handle(context.Background(), event, jb.Name(), jb.Run, s.logger)
		if resp.StatusCode != http.StatusOK {
			s.logger.Error("Scheduled run did not succeed",
				zap.String("job", jb.Name()),
				zap.Int("status", resp.StatusCode),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("add schedule %q for job %s: %w", spec, jb.Name(), err)
	}
	s.logger.Info("Scheduled job", zap.String("job", jb.Name()), zap.String("spec", spec))
	return nil
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
