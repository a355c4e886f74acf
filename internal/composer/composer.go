// internal/composer/composer.go
package composer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/generator"
	"autoapply/internal/models"
)

const topSkillCount = 5

// Composer turns a (job, profile, template) triple into a concrete
// application draft via the content generator.
type Composer struct {
	db       *sql.DB
	gen      generator.Client
	contacts ContactResolver
	logger   logger.Logger
}

func New(db *sql.DB, gen generator.Client, log logger.Logger) *Composer {
	return &Composer{
		db:       db,
		gen:      gen,
		contacts: NewDescriptionScanResolver(),
		logger:   log.WithFields(map[string]interface{}{"component": "composer"}),
	}
}

// WithContactResolver swaps the contact-address heuristic.
func (c *Composer) WithContactResolver(r ContactResolver) *Composer {
	c.contacts = r
	return c
}

// Compose produces a draft for one job. Fails with TEMPLATE_NOT_FOUND when
// the user has no usable template, and with GENERATION_FAILED/_TIMEOUT when
// the generator gives no content after its retries.
func (c *Composer) Compose(ctx context.Context, job models.JobPosting, profile *models.UserProfile) (*models.ApplicationDraft, error) {
	template, err := c.selectTemplate(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	body, err := c.gen.Generate(ctx, buildCoverLetterPrompt(job, profile))
	if err != nil {
		return nil, err
	}

	subject := renderSubject(template.SubjectPattern, job, profile)

	contact := c.contacts.Resolve(job)
	if contact.Synthesized {
		c.logger.Warn("no contact address in posting, synthesized fallback", map[string]interface{}{
			"jobId":   job.ID,
			"company": job.Company,
			"toEmail": contact.Email,
		})
	}

	return &models.ApplicationDraft{
		JobID:              job.ID,
		Subject:            subject,
		Body:               body,
		ToEmail:            contact.Email,
		SynthesizedContact: contact.Synthesized,
	}, nil
}

// selectTemplate picks the user's default template, or the sole active one.
func (c *Composer) selectTemplate(ctx context.Context, userID string) (*models.EmailTemplate, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, name, subject_pattern, is_active, is_default
		FROM email_templates
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY is_default DESC, id`, userID)
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	var templates []models.EmailTemplate
	for rows.Next() {
		var t models.EmailTemplate
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.SubjectPattern, &t.IsActive, &t.IsDefault); err != nil {
			return nil, stderrors.NewDatabaseQueryFailedError(err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}

	switch {
	case len(templates) == 0:
		return nil, stderrors.NewTemplateNotFoundError(userID)
	case templates[0].IsDefault:
		return &templates[0], nil
	case len(templates) == 1:
		return &templates[0], nil
	default:
		// Multiple active templates and none marked default.
		return nil, stderrors.NewTemplateNotFoundError(userID)
	}
}

// buildCoverLetterPrompt combines the posting with a short profile summary.
func buildCoverLetterPrompt(job models.JobPosting, profile *models.UserProfile) string {
	skills := profile.Skills
	if len(skills) > topSkillCount {
		skills = skills[:topSkillCount]
	}

	var b strings.Builder
	b.WriteString("Write a concise, professional cover letter for the following job application.\n\n")
	fmt.Fprintf(&b, "Job title: %s\nCompany: %s\n\n", job.Title, job.Company)
	fmt.Fprintf(&b, "Candidate: %s %s, %s\n", profile.FirstName, profile.LastName, profile.Title)
	fmt.Fprintf(&b, "Key skills: %s\n", strings.Join(skills, ", "))
	fmt.Fprintf(&b, "Positions held: %d\n\n", profile.ExperienceCount)
	b.WriteString("Return only the letter body, no salutation placeholders.")
	return b.String()
}

// renderSubject substitutes the known placeholders in a subject pattern.
// Unresolved placeholders are left verbatim, never deleted.
func renderSubject(pattern string, job models.JobPosting, profile *models.UserProfile) string {
	replacer := strings.NewReplacer(
		"{jobTitle}", job.Title,
		"{company}", job.Company,
		"{firstName}", profile.FirstName,
		"{lastName}", profile.LastName,
	)
	return replacer.Replace(pattern)
}
