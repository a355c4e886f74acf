// internal/preferences/store_test.go
package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewStore(db, rdb, logger.NewTestLogger(t)), mock, mr
}

func seedCache(t *testing.T, mr *miniredis.Miniredis, settings *models.AutoApplicationSettings) {
	t.Helper()
	payload, err := json.Marshal(settings)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(settings.UserID), string(payload)))
}

func TestGet_LazilyCreatesDefaults(t *testing.T) {
	store, mock, mr := newTestStore(t)

	mock.ExpectQuery(`SELECT user_id, enabled`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO auto_application_settings`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)

	// Conservative defaults: disabled, 1/day, approval required.
	assert.False(t, settings.Enabled)
	assert.Equal(t, 1, settings.MaxApplicationsPerDay)
	assert.True(t, settings.RequireApproval)
	assert.False(t, settings.AutoSend)
	assert.Equal(t, models.ExperienceAll, settings.ExperienceLevel)

	assert.True(t, mr.Exists(cacheKey("user-1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_CacheHitSkipsDatabase(t *testing.T) {
	store, mock, mr := newTestStore(t)

	cached := models.DefaultSettings("user-1")
	cached.Enabled = true
	cached.MaxApplicationsPerDay = 4
	seedCache(t, mr, cached)

	settings, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 4, settings.MaxApplicationsPerDay)

	// No queries expected, none made.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_InvalidSettingsRejected(t *testing.T) {
	store, mock, _ := newTestStore(t)

	settings := models.DefaultSettings("user-1")
	settings.MaxApplicationsPerDay = 0

	err := store.Put(context.Background(), settings)
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeSettingsInvalid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_MergesPatchOntoStoredSettings(t *testing.T) {
	store, mock, mr := newTestStore(t)

	current := models.DefaultSettings("user-1")
	current.PreferredLocations = []string{"Tunis"}
	seedCache(t, mr, current)

	mock.ExpectExec(`INSERT INTO auto_application_settings`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	patch := []byte(`{"enabled": true, "maxApplicationsPerDay": 5, "excludedCompanies": ["BadCo"]}`)
	settings, err := store.Apply(context.Background(), "user-1", patch)
	require.NoError(t, err)

	assert.True(t, settings.Enabled)
	assert.Equal(t, 5, settings.MaxApplicationsPerDay)
	assert.Equal(t, []string{"BadCo"}, settings.ExcludedCompanies)
	// Unpatched fields survive.
	assert.Equal(t, []string{"Tunis"}, settings.PreferredLocations)
	assert.True(t, settings.RequireApproval)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_UnknownFieldRejected(t *testing.T) {
	store, mock, _ := newTestStore(t)

	_, err := store.Apply(context.Background(), "user-1", []byte(`{"maxApplicationsPerWeek": 10}`))
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeSettingsInvalid))
	// Rejected before any read or write.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_SalaryBoundsValidatedAfterMerge(t *testing.T) {
	store, _, mr := newTestStore(t)

	current := models.DefaultSettings("user-1")
	maxSalary := 40000
	current.MaxSalary = &maxSalary
	seedCache(t, mr, current)

	_, err := store.Apply(context.Background(), "user-1", []byte(`{"minSalary": 90000}`))
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeSettingsInvalid))
}

func TestParsePatch_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown field", raw: `{"nope": 1}`},
		{name: "zero quota", raw: `{"maxApplicationsPerDay": 0}`},
		{name: "bad job type", raw: `{"jobTypes": ["Internship"]}`},
		{name: "bad experience level", raw: `{"experienceLevel": "expert"}`},
		{name: "wrong type", raw: `{"enabled": "yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePatch([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeSettingsInvalid))
		})
	}
}

func TestParsePatch_ValidPatch(t *testing.T) {
	patch, err := ParsePatch([]byte(`{"jobTypes": ["CDI", "Freelance"], "experienceLevel": "senior"}`))
	require.NoError(t, err)
	require.NotNil(t, patch.JobTypes)
	assert.Equal(t, []models.JobType{models.JobTypeCDI, models.JobTypeFreelance}, *patch.JobTypes)
	require.NotNil(t, patch.ExperienceLevel)
	assert.Equal(t, models.ExperienceSenior, *patch.ExperienceLevel)
	assert.Nil(t, patch.Enabled)
}
