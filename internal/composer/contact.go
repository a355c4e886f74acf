// internal/composer/contact.go
package composer

import (
	"regexp"
	"strings"

	"autoapply/internal/models"
)

// ContactResolution carries the recipient address and how it was obtained.
// Synthesized addresses are lower-confidence heuristics; callers may require
// human approval before sending to one.
type ContactResolution struct {
	Email       string
	Synthesized bool
}

// ContactResolver derives a company contact address from a posting.
// Pluggable so the heuristic can be swapped independently of the composer.
type ContactResolver interface {
	Resolve(job models.JobPosting) ContactResolution
}

var addressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// DescriptionScanResolver scans the posting description for an RFC-5322
// shaped address and takes the first match. When none is found it falls back
// to recruitment@<slugified-company>.<tld>.
type DescriptionScanResolver struct {
	FallbackTLD string
}

func NewDescriptionScanResolver() DescriptionScanResolver {
	return DescriptionScanResolver{FallbackTLD: "com"}
}

func (r DescriptionScanResolver) Resolve(job models.JobPosting) ContactResolution {
	if match := addressPattern.FindString(job.Description); match != "" {
		return ContactResolution{Email: match}
	}

	tld := r.FallbackTLD
	if tld == "" {
		tld = "com"
	}

	return ContactResolution{
		Email:       "recruitment@" + slugifyCompany(job.Company) + "." + tld,
		Synthesized: true,
	}
}

func slugifyCompany(company string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(company), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "company"
	}
	return slug
}
