// internal/matcher/matcher_test.go
package matcher

import (
	"context"
	"testing"
	"time"

	"autoapply/internal/catalog"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog returns canned postings and records the query it received.
type fakeCatalog struct {
	postings []models.JobPosting
	lastQ    catalog.Query
	calls    int
}

func (f *fakeCatalog) Search(ctx context.Context, q catalog.Query) ([]models.JobPosting, error) {
	f.calls++
	f.lastQ = q
	return f.postings, nil
}

func tunisJobs() []models.JobPosting {
	return []models.JobPosting{
		{ID: "job-1", Title: "Backend Developer", Company: "GoodCo", Location: "Tunis", Type: models.JobTypeCDI, Description: "Go services", IsActive: true},
		{ID: "job-2", Title: "Platform Engineer", Company: "BadCo", Location: "Tunis", Type: models.JobTypeCDI, Description: "infra", IsActive: true},
		{ID: "job-3", Title: "SRE", Company: "OtherCo", Location: "Tunis", Type: models.JobTypeCDD, Description: "on-call rotation", IsActive: true},
	}
}

func enabledSettings() *models.AutoApplicationSettings {
	return &models.AutoApplicationSettings{
		UserID:                "user-1",
		Enabled:               true,
		MaxApplicationsPerDay: 2,
		PreferredLocations:    []string{"Tunis"},
		ExcludedCompanies:     []string{"BadCo"},
		ExperienceLevel:       models.ExperienceAll,
	}
}

func expectQuotaAndDedup(mock sqlmock.Sqlmock, appliedToday int, appliedJobs ...string) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications`).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(appliedToday))

	rows := sqlmock.NewRows([]string{"job_id"})
	for _, id := range appliedJobs {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT job_id FROM applications`).
		WithArgs("user-1").
		WillReturnRows(rows)
}

func TestFindMatchingJobs_ExcludesCompanies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectQuotaAndDedup(mock, 0)

	cat := &fakeCatalog{postings: tunisJobs()}
	m := New(db, cat, logger.NewTestLogger(t))

	jobs, err := m.FindMatchingJobs(context.Background(), "user-1", enabledSettings())
	require.NoError(t, err)

	// 3 active Tunis jobs, one from BadCo: exactly the 2 others survive.
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "job-3", jobs[1].ID)
	assert.Equal(t, []string{"Tunis"}, cat.lastQ.Locations)
	assert.True(t, cat.lastQ.OnlyActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMatchingJobs_DisabledReturnsEmptyWithoutCatalogQuery(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := &fakeCatalog{postings: tunisJobs()}
	m := New(db, cat, logger.NewTestLogger(t))

	settings := enabledSettings()
	settings.Enabled = false

	jobs, err := m.FindMatchingJobs(context.Background(), "user-1", settings)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, cat.calls)
}

func TestFindMatchingJobs_QuotaExhaustedSkipsCatalog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications`).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	cat := &fakeCatalog{postings: tunisJobs()}
	m := New(db, cat, logger.NewTestLogger(t))

	jobs, err := m.FindMatchingJobs(context.Background(), "user-1", enabledSettings())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, cat.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMatchingJobs_DedupAcrossRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// job-1 was applied to in a previous run (status irrelevant).
	expectQuotaAndDedup(mock, 0, "job-1")

	cat := &fakeCatalog{postings: tunisJobs()}
	m := New(db, cat, logger.NewTestLogger(t))

	jobs, err := m.FindMatchingJobs(context.Background(), "user-1", enabledSettings())
	require.NoError(t, err)

	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.NotEqual(t, "job-1", j.ID)
	}
}

func TestFindMatchingJobs_RemainingQuotaCapsResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectQuotaAndDedup(mock, 1)

	cat := &fakeCatalog{postings: tunisJobs()}
	m := New(db, cat, logger.NewTestLogger(t))

	jobs, err := m.FindMatchingJobs(context.Background(), "user-1", enabledSettings())
	require.NoError(t, err)

	// maxApplicationsPerDay=2 with 1 already applied: only one slot left.
	assert.Len(t, jobs, 1)
}

func TestFindMatchingJobs_KeywordFilters(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		excluded []string
		wantIDs  []string
	}{
		{
			name:     "excluded keyword drops posting",
			excluded: []string{"on-call"},
			wantIDs:  []string{"job-1"},
		},
		{
			name:     "required keywords enforced",
			required: []string{"go"},
			wantIDs:  []string{"job-1"},
		},
		{
			name:    "empty sets are unrestricted",
			wantIDs: []string{"job-1", "job-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })

			expectQuotaAndDedup(mock, 0)

			settings := enabledSettings()
			settings.MaxApplicationsPerDay = 10
			settings.RequiredKeywords = tt.required
			settings.ExcludedKeywords = tt.excluded

			cat := &fakeCatalog{postings: tunisJobs()}
			m := New(db, cat, logger.NewTestLogger(t))

			jobs, err := m.FindMatchingJobs(context.Background(), "user-1", settings)
			require.NoError(t, err)

			got := make([]string, 0, len(jobs))
			for _, j := range jobs {
				got = append(got, j.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestFindMatchingJobs_UTCDayBoundary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fixed := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	dayStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications`).
		WithArgs("user-1", dayStart).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT job_id FROM applications`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

	cat := &fakeCatalog{postings: nil}
	m := New(db, cat, logger.NewTestLogger(t))
	m.now = func() time.Time { return fixed }

	_, err = m.FindMatchingJobs(context.Background(), "user-1", enabledSettings())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
