// internal/preferences/store.go
package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Store owns auto_application_settings rows with a Redis read-through cache.
// Settings are created lazily: the first Get for an unknown user persists
// and returns the defaults.
type Store struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewStore(db *sql.DB, cache *redis.Client, log logger.Logger) *Store {
	return &Store{
		db:       db,
		cache:    cache,
		cacheTTL: defaultCacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "preference-store"}),
		now:      time.Now,
	}
}

// WithCacheTTL overrides the settings cache lifetime.
func (s *Store) WithCacheTTL(ttl time.Duration) *Store {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

func cacheKey(userID string) string {
	return "settings:" + userID
}

// Get returns the user's settings, from cache when fresh. A cache miss reads
// the database; an absent row inserts and returns the defaults.
func (s *Store) Get(ctx context.Context, userID string) (*models.AutoApplicationSettings, error) {
	if cached, err := s.cache.Get(ctx, cacheKey(userID)).Result(); err == nil {
		var settings models.AutoApplicationSettings
		if jsonErr := json.Unmarshal([]byte(cached), &settings); jsonErr == nil {
			return &settings, nil
		}
		// Corrupt cache entry: fall through to the database.
		s.cache.Del(ctx, cacheKey(userID))
	}

	settings, err := s.load(ctx, userID)
	if err == sql.ErrNoRows {
		settings = models.DefaultSettings(userID)
		settings.UpdatedAt = s.now().UTC()
		if err := s.upsert(ctx, settings); err != nil {
			return nil, err
		}
		s.logger.Info("created default settings", map[string]interface{}{"userId": userID})
	} else if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}

	s.cacheSet(ctx, settings)
	return settings, nil
}

// Put validates and persists a full settings value, replacing the cache.
func (s *Store) Put(ctx context.Context, settings *models.AutoApplicationSettings) error {
	if err := settings.Validate(); err != nil {
		return stderrors.NewSettingsInvalidError(err.Error())
	}

	settings.UpdatedAt = s.now().UTC()
	if err := s.upsert(ctx, settings); err != nil {
		return err
	}
	s.cacheSet(ctx, settings)
	return nil
}

// Apply overlays a validated partial update onto the stored settings.
// The merged result must still satisfy the settings invariants.
func (s *Store) Apply(ctx context.Context, userID string, rawPatch []byte) (*models.AutoApplicationSettings, error) {
	patch, err := ParsePatch(rawPatch)
	if err != nil {
		return nil, err
	}

	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch.applyTo(settings)
	if err := s.Put(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// EnabledUserIDs lists users with auto-application switched on, for the
// scheduled pipeline run.
func (s *Store) EnabledUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM auto_application_settings WHERE enabled = TRUE ORDER BY user_id`)
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, stderrors.NewDatabaseQueryFailedError(err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}
	return userIDs, nil
}

func (s *Store) load(ctx context.Context, userID string) (*models.AutoApplicationSettings, error) {
	settings := &models.AutoApplicationSettings{}
	var jobTypes []string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, enabled, max_applications_per_day, min_salary, max_salary,
		       preferred_locations, excluded_companies, required_keywords, excluded_keywords,
		       job_types, experience_level, auto_send, require_approval, updated_at
		FROM auto_application_settings
		WHERE user_id = $1`, userID).Scan(
		&settings.UserID, &settings.Enabled, &settings.MaxApplicationsPerDay,
		&settings.MinSalary, &settings.MaxSalary,
		pq.Array(&settings.PreferredLocations), pq.Array(&settings.ExcludedCompanies),
		pq.Array(&settings.RequiredKeywords), pq.Array(&settings.ExcludedKeywords),
		pq.Array(&jobTypes), &settings.ExperienceLevel,
		&settings.AutoSend, &settings.RequireApproval, &settings.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, jt := range jobTypes {
		settings.JobTypes = append(settings.JobTypes, models.JobType(jt))
	}
	return settings, nil
}

func (s *Store) upsert(ctx context.Context, settings *models.AutoApplicationSettings) error {
	jobTypes := make([]string, len(settings.JobTypes))
	for i, jt := range settings.JobTypes {
		jobTypes[i] = string(jt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_application_settings
			(user_id, enabled, max_applications_per_day, min_salary, max_salary,
			 preferred_locations, excluded_companies, required_keywords, excluded_keywords,
			 job_types, experience_level, auto_send, require_approval, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			max_applications_per_day = EXCLUDED.max_applications_per_day,
			min_salary = EXCLUDED.min_salary,
			max_salary = EXCLUDED.max_salary,
			preferred_locations = EXCLUDED.preferred_locations,
			excluded_companies = EXCLUDED.excluded_companies,
			required_keywords = EXCLUDED.required_keywords,
			excluded_keywords = EXCLUDED.excluded_keywords,
			job_types = EXCLUDED.job_types,
			experience_level = EXCLUDED.experience_level,
			auto_send = EXCLUDED.auto_send,
			require_approval = EXCLUDED.require_approval,
			updated_at = EXCLUDED.updated_at`,
		settings.UserID, settings.Enabled, settings.MaxApplicationsPerDay,
		settings.MinSalary, settings.MaxSalary,
		pq.Array(settings.PreferredLocations), pq.Array(settings.ExcludedCompanies),
		pq.Array(settings.RequiredKeywords), pq.Array(settings.ExcludedKeywords),
		pq.Array(jobTypes), settings.ExperienceLevel,
		settings.AutoSend, settings.RequireApproval, settings.UpdatedAt)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) cacheSet(ctx context.Context, settings *models.AutoApplicationSettings) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(settings.UserID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("settings cache write failed", map[string]interface{}{
			"userId": settings.UserID,
			"error":  err.Error(),
		})
	}
}
