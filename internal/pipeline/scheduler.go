// internal/pipeline/scheduler.go
package pipeline

import (
	"context"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/observability"
	"autoapply/internal/inbound"
	"autoapply/internal/preferences"

	"github.com/robfig/cron/v3"
)

const defaultRunTimeout = 30 * time.Minute

// Scheduler runs the pipeline for every enabled user on a cron schedule and
// re-drives queued recruiter replies on the same tick.
type Scheduler struct {
	cron         *cron.Cron
	prefs        *preferences.Store
	orchestrator *Orchestrator
	ingestor     *inbound.Ingestor
	schedule     string
	runTimeout   time.Duration
	obs          *observability.Observability
	logger       logger.Logger
}

func NewScheduler(prefs *preferences.Store, o *Orchestrator, ing *inbound.Ingestor,
	schedule string, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		prefs:        prefs,
		orchestrator: o,
		ingestor:     ing,
		schedule:     schedule,
		runTimeout:   defaultRunTimeout,
		logger:       log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// WithObservability enables per-run OpenTelemetry recording.
func (s *Scheduler) WithObservability(obs *observability.Observability) *Scheduler {
	s.obs = obs
	return s
}

// Start registers the scheduled run and begins ticking.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.tick)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", map[string]interface{}{"schedule": s.schedule})
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped", nil)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	s.RunAll(ctx)

	if s.ingestor != nil {
		if _, err := s.ingestor.ReprocessPending(ctx); err != nil {
			s.logger.Error("reply reprocessing failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// RunAll executes one pipeline pass for every enabled user. A failing user
// never blocks the rest.
func (s *Scheduler) RunAll(ctx context.Context) {
	userIDs, err := s.prefs.EnabledUserIDs(ctx)
	if err != nil {
		s.logger.Error("enabled-user listing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.logger.Info("scheduled run starting", map[string]interface{}{"users": len(userIDs)})

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			s.logger.Warn("scheduled run cancelled", map[string]interface{}{
				"remainingUsers": len(userIDs),
			})
			return
		}

		started := time.Now()
		_, err := s.orchestrator.RunForUser(ctx, userID)
		outcome := "success"
		if err != nil {
			outcome = "error"
			// Disabled-between-listing-and-run is normal, everything else is not.
			if !stderrors.IsCode(err, stderrors.ErrCodeSettingsDisabled) {
				s.logger.Error("pipeline run failed", map[string]interface{}{
					"userId": userID,
					"error":  err.Error(),
				})
			}
		}
		if s.obs != nil {
			s.obs.RecordRun(ctx, outcome)
			s.obs.RecordRunDuration(ctx, time.Since(started), outcome)
		}
	}
}
