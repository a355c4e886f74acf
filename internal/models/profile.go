// internal/models/profile.go
package models

// UserProfile is the slice of resume data the composer needs.
// Read-only to the pipeline.
type UserProfile struct {
	UserID          string   `json:"userId"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Email           string   `json:"email"`
	Title           string   `json:"title"`
	Skills          []string `json:"skills"`
	ExperienceCount int      `json:"experienceCount"`
}

// EmailTemplate drives subject rendering for composed applications.
// SubjectPattern may contain {jobTitle}, {company}, {firstName}, {lastName}.
type EmailTemplate struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	SubjectPattern string `json:"subjectPattern"`
	IsActive       bool   `json:"isActive"`
	IsDefault      bool   `json:"isDefault"`
}
