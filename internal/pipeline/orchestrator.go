// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/metrics"
	"autoapply/internal/composer"
	"autoapply/internal/dispatcher"
	"autoapply/internal/matcher"
	"autoapply/internal/models"
	"autoapply/internal/preferences"

	"github.com/lib/pq"
)

const defaultConcurrency = 5

// Summary reports what one pipeline run did for one user.
type Summary struct {
	UserID         string `json:"userId"`
	Matched        int    `json:"matched"`
	Composed       int    `json:"composed"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	SkippedByQuota int    `json:"skippedByQuota"`
}

// Orchestrator drives the matcher → composer → dispatcher sequence for a
// user, fanning out per matched job with bounded concurrency. One job
// failing never aborts the rest of the batch.
type Orchestrator struct {
	db          *sql.DB
	prefs       *preferences.Store
	matcher     *matcher.Matcher
	composer    *composer.Composer
	dispatcher  *dispatcher.Dispatcher
	concurrency int
	logger      logger.Logger
}

func NewOrchestrator(db *sql.DB, prefs *preferences.Store, m *matcher.Matcher,
	c *composer.Composer, d *dispatcher.Dispatcher, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		db:          db,
		prefs:       prefs,
		matcher:     m,
		composer:    c,
		dispatcher:  d,
		concurrency: defaultConcurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// WithConcurrency bounds the per-run job fan-out.
func (o *Orchestrator) WithConcurrency(n int) *Orchestrator {
	if n > 0 {
		o.concurrency = n
	}
	return o
}

// RunForUser executes one full pipeline pass for a user. Disabled settings
// stop the run before any catalog or transport contact.
func (o *Orchestrator) RunForUser(ctx context.Context, userID string) (*Summary, error) {
	started := time.Now()
	summary := &Summary{UserID: userID}

	settings, err := o.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, stderrors.NewSettingsDisabledError(userID)
	}

	profile, err := o.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	jobs, err := o.matcher.FindMatchingJobs(ctx, userID, settings)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	summary.Matched = len(jobs)

	if len(jobs) > 0 {
		o.fanOut(ctx, jobs, profile, settings, summary)
	}

	outcome := "success"
	if summary.Failed > 0 {
		outcome = "partial"
	}
	metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	metrics.PipelineRunDuration.Observe(time.Since(started).Seconds())

	o.logger.Info("pipeline run finished", map[string]interface{}{
		"userId":         userID,
		"matched":        summary.Matched,
		"composed":       summary.Composed,
		"sent":           summary.Sent,
		"failed":         summary.Failed,
		"skippedByQuota": summary.SkippedByQuota,
		"durationMs":     time.Since(started).Milliseconds(),
	})
	return summary, nil
}

// fanOut processes matched jobs with a bounded worker pool. Once the quota
// signal fires the remaining jobs are skipped without transport contact.
func (o *Orchestrator) fanOut(ctx context.Context, jobs []models.JobPosting,
	profile *models.UserProfile, settings *models.AutoApplicationSettings, summary *Summary) {

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	quotaSpent := false

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		spent := quotaSpent
		mu.Unlock()
		if spent {
			mu.Lock()
			summary.SkippedByQuota++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(job models.JobPosting) {
			defer wg.Done()
			defer func() { <-sem }()

			err := o.processJob(ctx, job, profile, settings, summary, &mu)
			if stderrors.IsQuotaExceeded(err) {
				mu.Lock()
				quotaSpent = true
				summary.SkippedByQuota++
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
}

// processJob runs compose → create → dispatch for one job. Errors are
// recorded in the summary; only the quota signal is propagated so the
// caller can stop the batch.
func (o *Orchestrator) processJob(ctx context.Context, job models.JobPosting,
	profile *models.UserProfile, settings *models.AutoApplicationSettings,
	summary *Summary, mu *sync.Mutex) error {

	draft, err := o.composer.Compose(ctx, job, profile)
	if err != nil {
		o.logger.Error("compose failed", map[string]interface{}{
			"userId": profile.UserID,
			"jobId":  job.ID,
			"error":  err.Error(),
		})
		mu.Lock()
		summary.Failed++
		mu.Unlock()
		return nil
	}
	mu.Lock()
	summary.Composed++
	mu.Unlock()

	app, err := o.dispatcher.CreateApplication(ctx, profile.UserID, draft)
	if err != nil {
		if isUniqueViolation(err) {
			// Already applied to this job; the dedup filter lost a race.
			o.logger.Warn("duplicate application suppressed", map[string]interface{}{
				"userId": profile.UserID,
				"jobId":  job.ID,
			})
			return nil
		}
		mu.Lock()
		summary.Failed++
		mu.Unlock()
		return nil
	}

	if !settings.AutoSend {
		// Draft kept for manual review; nothing dispatched.
		return nil
	}

	_, err = o.dispatcher.Dispatch(ctx, app, draft, settings)
	switch {
	case err == nil:
		mu.Lock()
		summary.Sent++
		mu.Unlock()
	case stderrors.IsQuotaExceeded(err):
		return err
	case stderrors.IsCode(err, stderrors.ErrCodeApprovalPending):
		o.logger.Info("draft awaits approval", map[string]interface{}{
			"userId":        profile.UserID,
			"applicationId": app.ID,
		})
	default:
		o.logger.Error("dispatch failed", map[string]interface{}{
			"userId":        profile.UserID,
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		mu.Lock()
		summary.Failed++
		mu.Unlock()
	}
	return nil
}

func (o *Orchestrator) loadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	err := o.db.QueryRowContext(ctx, `
		SELECT user_id, first_name, last_name, email, title, skills, experience_count
		FROM user_profiles
		WHERE user_id = $1`, userID).Scan(
		&profile.UserID, &profile.FirstName, &profile.LastName, &profile.Email,
		&profile.Title, pq.Array(&profile.Skills), &profile.ExperienceCount)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewProfileNotFoundError(userID)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}
	return profile, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
