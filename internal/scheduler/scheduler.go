// Package scheduler drives a set of configured operations on cron
// schedules, applying optional jitter before each run.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ethanadams/awscore/internal/config"
	"github.com/ethanadams/awscore/internal/jitter"
	"github.com/ethanadams/awscore/internal/logging"
)

// Runner executes one configured operation.
type Runner interface {
	Run(ctx context.Context, op config.Operation) error
}

// Scheduler registers and runs every enabled operation in a Config on
// its own cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	runner Runner
	logger logging.Logger
}

func New(cfg *config.Config, runner Runner, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop
	}
	return &Scheduler{cron: cron.New(), cfg: cfg, runner: runner, logger: logger}
}

// Start registers every enabled operation and starts the cron loop. It
// returns an error only if a schedule expression fails to parse; runtime
// failures of individual operations are logged, not returned.
func (s *Scheduler) Start(ctx context.Context) error {
	enabled := 0

	for _, op := range s.cfg.Operations {
		if !op.Enabled {
			s.logger.Debug("skipping disabled operation: %s", op.Name)
			continue
		}
		opCopy := op

		effective := opCopy.Jitter.Effective(s.cfg.Jitter)
		scheduleInterval, _ := config.ParseCronInterval(opCopy.Schedule)
		jitterDuration, _ := (&effective).ParseMax(scheduleInterval)

		entryID, err := s.cron.AddFunc(opCopy.Schedule, func() {
			if jitterDuration > 0 {
				if err := jitter.Apply(ctx, jitterDuration, opCopy.Name, s.logger); err != nil {
					s.logger.Warn("operation %s jitter interrupted: %v", opCopy.Name, err)
					return
				}
			}
			s.logger.Info("running scheduled operation: %s", opCopy.Name)
			if err := s.runner.Run(ctx, opCopy); err != nil {
				s.logger.Error("operation %s failed: %v", opCopy.Name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling operation %s: %w", opCopy.Name, err)
		}

		enabled++
		s.logger.Info("scheduled operation %s (schedule=%s, jitter=%v, entry=%d)", opCopy.Name, opCopy.Schedule, jitterDuration, entryID)
	}

	if enabled == 0 {
		s.logger.Warn("no operations enabled in configuration")
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight cron jobs to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow runs one named operation immediately, bypassing its schedule —
// useful for a CLI --run-once flag.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, op := range s.cfg.Operations {
		if op.Name == name {
			return s.runner.Run(ctx, op)
		}
	}
	return fmt.Errorf("operation not found: %s", name)
}
