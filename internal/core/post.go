// Package core holds the domain types shared across storage, handlers, and
// the CLI.
package core

import "strings"

// Post is a stored post record.
type Post struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
	Rating    *int   `json:"rating"`
}

// PostInput is the caller-supplied shape for create and update operations.
// Published is a pointer so an omitted field can default to true.
type PostInput struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published"`
	Rating    *int   `json:"rating"`
}

// Validate checks the required fields.
func (in PostInput) Validate() []string {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		problems = append(problems, "content is required")
	}
	return problems
}

// IsPublished resolves the published flag, defaulting to true when omitted.
func (in PostInput) IsPublished() bool {
	if in.Published == nil {
		return true
	}
	return *in.Published
}
