// internal/composer/composer_test.go
package composer

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	content string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func testProfile() *models.UserProfile {
	return &models.UserProfile{
		UserID:          "user-1",
		FirstName:       "Amira",
		LastName:        "Ben Salah",
		Email:           "amira@example.com",
		Title:           "Software Engineer",
		Skills:          []string{"Go", "PostgreSQL", "Kubernetes", "Redis", "AWS", "Terraform"},
		ExperienceCount: 3,
	}
}

func testJob() models.JobPosting {
	return models.JobPosting{
		ID:          "job-1",
		Title:       "Backend Developer",
		Company:     "Acme Widgets",
		Location:    "Tunis",
		Description: "We build widgets. Contact hiring@acme.io for details.",
		IsActive:    true,
	}
}

func templateRows(rows ...[]driverValue) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"id", "user_id", "name", "subject_pattern", "is_active", "is_default"})
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

type driverValue = driver.Value

func expectTemplates(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT id, user_id, name, subject_pattern, is_active, is_default`).
		WithArgs("user-1").
		WillReturnRows(rows)
}

func TestCompose_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectTemplates(mock, templateRows(
		[]driverValue{"tpl-1", "user-1", "default", "Application for {jobTitle} at {company} - {firstName} {lastName}", true, true},
	))

	gen := &fakeGenerator{content: "Dear team, I would love to join."}
	c := New(db, gen, logger.NewTestLogger(t))

	draft, err := c.Compose(context.Background(), testJob(), testProfile())
	require.NoError(t, err)

	assert.Equal(t, "job-1", draft.JobID)
	assert.Equal(t, "Application for Backend Developer at Acme Widgets - Amira Ben Salah", draft.Subject)
	assert.Equal(t, "Dear team, I would love to join.", draft.Body)
	assert.Equal(t, "hiring@acme.io", draft.ToEmail)
	assert.False(t, draft.SynthesizedContact)

	// Prompt carries the job and the profile summary, capped at 5 skills.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Backend Developer")
	assert.Contains(t, gen.prompts[0], "AWS")
	assert.NotContains(t, gen.prompts[0], "Terraform")
}

func TestCompose_UnresolvedPlaceholdersLeftVerbatim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectTemplates(mock, templateRows(
		[]driverValue{"tpl-1", "user-1", "default", "{jobTitle} / {unknownField}", true, true},
	))

	gen := &fakeGenerator{content: "body"}
	c := New(db, gen, logger.NewTestLogger(t))

	draft, err := c.Compose(context.Background(), testJob(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "Backend Developer / {unknownField}", draft.Subject)
}

func TestCompose_NoTemplateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectTemplates(mock, templateRows())

	c := New(db, &fakeGenerator{content: "body"}, logger.NewTestLogger(t))

	_, err = c.Compose(context.Background(), testJob(), testProfile())
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeTemplateNotFound))
}

func TestCompose_SoleActiveTemplateUsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectTemplates(mock, templateRows(
		[]driverValue{"tpl-2", "user-1", "only", "Re: {jobTitle}", true, false},
	))

	c := New(db, &fakeGenerator{content: "body"}, logger.NewTestLogger(t))

	draft, err := c.Compose(context.Background(), testJob(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "Re: Backend Developer", draft.Subject)
}

func TestCompose_GeneratorFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectTemplates(mock, templateRows(
		[]driverValue{"tpl-1", "user-1", "default", "s", true, true},
	))

	genErr := stderrors.NewGenerationFailedError(fmt.Errorf("boom"))
	c := New(db, &fakeGenerator{err: genErr}, logger.NewTestLogger(t))

	_, err = c.Compose(context.Background(), testJob(), testProfile())
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeGenerationFailed))
}

func TestResolve_SynthesizedFallback(t *testing.T) {
	tests := []struct {
		name    string
		company string
		want    string
	}{
		{name: "simple company", company: "BadCo", want: "recruitment@badco.com"},
		{name: "spaces and punctuation", company: "Acme Widgets, S.A.", want: "recruitment@acme-widgets-s-a.com"},
		{name: "empty company", company: "", want: "recruitment@company.com"},
	}

	r := NewDescriptionScanResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(models.JobPosting{Company: tt.company, Description: "no address here"})
			assert.True(t, res.Synthesized)
			assert.Equal(t, tt.want, res.Email)
		})
	}
}

func TestResolve_FirstAddressInDescriptionWins(t *testing.T) {
	r := NewDescriptionScanResolver()
	res := r.Resolve(models.JobPosting{
		Company:     "Acme",
		Description: "Reach out to jobs@acme.fr or careers@acme.fr.",
	})
	assert.False(t, res.Synthesized)
	assert.Equal(t, "jobs@acme.fr", res.Email)
}
