// internal/matcher/filters.go
package matcher

import "strings"

// KeywordStrategy decides whether free text matches a keyword set.
// Pluggable so the heuristic can be swapped/tested independently of the
// matcher control flow.
type KeywordStrategy interface {
	ContainsAny(text string, keywords []string) bool
	ContainsAll(text string, keywords []string) bool
}

// SubstringKeywords matches by case-insensitive substring.
type SubstringKeywords struct{}

func (SubstringKeywords) ContainsAny(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (SubstringKeywords) ContainsAll(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if !strings.Contains(lowered, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// companyExcluded reports whether company is in the exclusion set
// (case-insensitive exact match).
func companyExcluded(company string, excluded []string) bool {
	for _, ex := range excluded {
		if strings.EqualFold(company, ex) {
			return true
		}
	}
	return false
}
