// internal/matcher/matcher.go
package matcher

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autoapply/internal/catalog"
	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"
)

const DefaultPageSize = 50

// RankFunc is the documented extension point for relevance ordering.
// The default is identity: results keep catalog-natural order.
type RankFunc func([]models.JobPosting) []models.JobPosting

type Matcher struct {
	db       *sql.DB
	catalog  catalog.Catalog
	keywords KeywordStrategy
	rank     RankFunc
	pageSize int
	logger   logger.Logger
	now      func() time.Time
}

func New(db *sql.DB, cat catalog.Catalog, log logger.Logger) *Matcher {
	return &Matcher{
		db:       db,
		catalog:  cat,
		keywords: SubstringKeywords{},
		pageSize: DefaultPageSize,
		logger:   log.WithFields(map[string]interface{}{"component": "matcher"}),
		now:      time.Now,
	}
}

// WithRank installs a relevance ordering on top of catalog-natural order.
func (m *Matcher) WithRank(rank RankFunc) *Matcher {
	m.rank = rank
	return m
}

// WithPageSize overrides the hard cap on returned candidates.
func (m *Matcher) WithPageSize(size int) *Matcher {
	if size > 0 {
		m.pageSize = size
	}
	return m
}

// FindMatchingJobs returns the ordered, deduplicated, quota-bounded candidate
// set for one user. A job already applied to (any status) is never returned
// again. Empty location/type filter sets mean "no restriction".
func (m *Matcher) FindMatchingJobs(ctx context.Context, userID string, settings *models.AutoApplicationSettings) ([]models.JobPosting, error) {
	if settings == nil || !settings.Enabled {
		return nil, nil
	}

	appliedToday, err := m.countAppliedToday(ctx, userID)
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}
	remaining := settings.MaxApplicationsPerDay - appliedToday
	if remaining <= 0 {
		m.logger.Info("daily quota already exhausted, skipping catalog query", map[string]interface{}{
			"userId":       userID,
			"appliedToday": appliedToday,
		})
		return nil, nil
	}

	appliedJobs, err := m.appliedJobIDs(ctx, userID)
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}

	postings, err := m.catalog.Search(ctx, catalog.Query{
		Locations:  settings.PreferredLocations,
		JobTypes:   settings.JobTypes,
		OnlyActive: true,
		Size:       m.pageSize,
	})
	if err != nil {
		return nil, err
	}

	matched := make([]models.JobPosting, 0, len(postings))
	for _, posting := range postings {
		if _, seen := appliedJobs[posting.ID]; seen {
			continue
		}
		if !posting.IsActive {
			continue
		}
		if companyExcluded(posting.Company, settings.ExcludedCompanies) {
			continue
		}
		text := posting.Title + " " + posting.Description
		if len(settings.ExcludedKeywords) > 0 && m.keywords.ContainsAny(text, settings.ExcludedKeywords) {
			continue
		}
		if len(settings.RequiredKeywords) > 0 && !m.keywords.ContainsAll(text, settings.RequiredKeywords) {
			continue
		}
		matched = append(matched, posting)
	}

	if m.rank != nil {
		matched = m.rank(matched)
	}

	if len(matched) > remaining {
		matched = matched[:remaining]
	}
	if len(matched) > m.pageSize {
		matched = matched[:m.pageSize]
	}

	m.logger.Info("candidate jobs matched", map[string]interface{}{
		"userId":  userID,
		"matched": len(matched),
		"fetched": len(postings),
	})

	return matched, nil
}

// countAppliedToday counts applications that consumed quota since the UTC
// day boundary: anything handed to the dispatcher, draft excluded.
func (m *Matcher) countAppliedToday(ctx context.Context, userID string) (int, error) {
	dayStart := m.now().UTC().Truncate(24 * time.Hour)

	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applications
		WHERE user_id = $1 AND created_at >= $2 AND status <> 'draft'`,
		userID, dayStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return count, nil
}

// appliedJobIDs returns every job the user has an application for, in any
// status. This is the hard dedup invariant.
func (m *Matcher) appliedJobIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT job_id FROM applications WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query applied jobs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
