// internal/models/job.go
package models

// SalaryRange is the advertised band of a posting, in whole currency units.
type SalaryRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// JobPosting is a catalog entry. Immutable from the pipeline's perspective.
type JobPosting struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Type        JobType     `json:"type"`
	SalaryRange SalaryRange `json:"salaryRange"`
	Description string      `json:"description"`
	IsActive    bool        `json:"isActive"`
}
