// internal/models/settings.go
package models

import (
	"fmt"
	"time"
)

// JobType is the contract type of a posting.
type JobType string

const (
	JobTypeCDI       JobType = "CDI"
	JobTypeCDD       JobType = "CDD"
	JobTypeStage     JobType = "Stage"
	JobTypeFreelance JobType = "Freelance"
)

// ExperienceLevel narrows matching to a seniority band.
type ExperienceLevel string

const (
	ExperienceJunior ExperienceLevel = "junior"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
	ExperienceAll    ExperienceLevel = "all"
)

// AutoApplicationSettings is the per-user auto-application configuration.
// Owned by the user through the preference store; read-only to the pipeline.
type AutoApplicationSettings struct {
	UserID                string          `json:"userId"`
	Enabled               bool            `json:"enabled"`
	MaxApplicationsPerDay int             `json:"maxApplicationsPerDay"`
	MinSalary             *int            `json:"minSalary,omitempty"`
	MaxSalary             *int            `json:"maxSalary,omitempty"`
	PreferredLocations    []string        `json:"preferredLocations"`
	ExcludedCompanies     []string        `json:"excludedCompanies"`
	RequiredKeywords      []string        `json:"requiredKeywords"`
	ExcludedKeywords      []string        `json:"excludedKeywords"`
	JobTypes              []JobType       `json:"jobTypes"`
	ExperienceLevel       ExperienceLevel `json:"experienceLevel"`
	AutoSend              bool            `json:"autoSend"`
	RequireApproval       bool            `json:"requireApproval"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// DefaultSettings returns the lazily-created configuration for a new user:
// auto-application off, one application per day, approval required.
func DefaultSettings(userID string) *AutoApplicationSettings {
	return &AutoApplicationSettings{
		UserID:                userID,
		Enabled:               false,
		MaxApplicationsPerDay: 1,
		ExperienceLevel:       ExperienceAll,
		AutoSend:              false,
		RequireApproval:       true,
		UpdatedAt:             time.Now().UTC(),
	}
}

// Validate enforces the settings invariants.
func (s *AutoApplicationSettings) Validate() error {
	if s.MaxApplicationsPerDay < 1 {
		return fmt.Errorf("maxApplicationsPerDay must be >= 1, got %d", s.MaxApplicationsPerDay)
	}
	if s.MinSalary != nil && s.MaxSalary != nil && *s.MinSalary > *s.MaxSalary {
		return fmt.Errorf("minSalary (%d) must not exceed maxSalary (%d)", *s.MinSalary, *s.MaxSalary)
	}
	switch s.ExperienceLevel {
	case ExperienceJunior, ExperienceMid, ExperienceSenior, ExperienceAll:
	default:
		return fmt.Errorf("unknown experienceLevel: %q", s.ExperienceLevel)
	}
	for _, jt := range s.JobTypes {
		switch jt {
		case JobTypeCDI, JobTypeCDD, JobTypeStage, JobTypeFreelance:
		default:
			return fmt.Errorf("unknown jobType: %q", jt)
		}
	}
	return nil
}
