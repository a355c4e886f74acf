// internal/preferences/patch.go
package preferences

import (
	"encoding/json"
	"fmt"
	"strings"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// settingsPatchSchema rejects unknown fields and out-of-domain values before
// the patch ever touches a stored row.
const settingsPatchSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"enabled":               {"type": "boolean"},
		"maxApplicationsPerDay": {"type": "integer", "minimum": 1},
		"minSalary":             {"type": "integer", "minimum": 0},
		"maxSalary":             {"type": "integer", "minimum": 0},
		"preferredLocations":    {"type": "array", "items": {"type": "string"}},
		"excludedCompanies":     {"type": "array", "items": {"type": "string"}},
		"requiredKeywords":      {"type": "array", "items": {"type": "string"}},
		"excludedKeywords":      {"type": "array", "items": {"type": "string"}},
		"jobTypes":              {"type": "array", "items": {"enum": ["CDI", "CDD", "Stage", "Freelance"]}},
		"experienceLevel":       {"enum": ["junior", "mid", "senior", "all"]},
		"autoSend":              {"type": "boolean"},
		"requireApproval":       {"type": "boolean"}
	}
}`

var patchSchema = gojsonschema.NewStringLoader(settingsPatchSchema)

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// userId and updatedAt are never patchable.
type SettingsPatch struct {
	Enabled               *bool                   `json:"enabled,omitempty"`
	MaxApplicationsPerDay *int                    `json:"maxApplicationsPerDay,omitempty"`
	MinSalary             *int                    `json:"minSalary,omitempty"`
	MaxSalary             *int                    `json:"maxSalary,omitempty"`
	PreferredLocations    *[]string               `json:"preferredLocations,omitempty"`
	ExcludedCompanies     *[]string               `json:"excludedCompanies,omitempty"`
	RequiredKeywords      *[]string               `json:"requiredKeywords,omitempty"`
	ExcludedKeywords      *[]string               `json:"excludedKeywords,omitempty"`
	JobTypes              *[]models.JobType       `json:"jobTypes,omitempty"`
	ExperienceLevel       *models.ExperienceLevel `json:"experienceLevel,omitempty"`
	AutoSend              *bool                   `json:"autoSend,omitempty"`
	RequireApproval       *bool                   `json:"requireApproval,omitempty"`
}

// ParsePatch validates raw JSON against the patch schema and decodes it.
// Unknown fields fail with SETTINGS_INVALID rather than being dropped.
func ParsePatch(raw []byte) (*SettingsPatch, error) {
	result, err := gojsonschema.Validate(patchSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, stderrors.NewSettingsInvalidError(fmt.Sprintf("malformed patch: %v", err))
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, stderrors.NewSettingsInvalidError(strings.Join(details, "; "))
	}

	var patch SettingsPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, stderrors.NewSettingsInvalidError(err.Error())
	}
	return &patch, nil
}

// applyTo overlays the patch onto a settings value in place.
func (p *SettingsPatch) applyTo(s *models.AutoApplicationSettings) {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.MaxApplicationsPerDay != nil {
		s.MaxApplicationsPerDay = *p.MaxApplicationsPerDay
	}
	if p.MinSalary != nil {
		s.MinSalary = p.MinSalary
	}
	if p.MaxSalary != nil {
		s.MaxSalary = p.MaxSalary
	}
	if p.PreferredLocations != nil {
		s.PreferredLocations = *p.PreferredLocations
	}
	if p.ExcludedCompanies != nil {
		s.ExcludedCompanies = *p.ExcludedCompanies
	}
	if p.RequiredKeywords != nil {
		s.RequiredKeywords = *p.RequiredKeywords
	}
	if p.ExcludedKeywords != nil {
		s.ExcludedKeywords = *p.ExcludedKeywords
	}
	if p.JobTypes != nil {
		s.JobTypes = *p.JobTypes
	}
	if p.ExperienceLevel != nil {
		s.ExperienceLevel = *p.ExperienceLevel
	}
	if p.AutoSend != nil {
		s.AutoSend = *p.AutoSend
	}
	if p.RequireApproval != nil {
		s.RequireApproval = *p.RequireApproval
	}
}
