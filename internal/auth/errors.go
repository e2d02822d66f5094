package auth

import "strings"

// ValidationErrorKind classifies a missing-configuration problem.
type ValidationErrorKind string

const (
	MissingAPIKey         ValidationErrorKind = "missing_api_key"
	MissingProjectConfig  ValidationErrorKind = "missing_project_config"
	MissingOAuthClient    ValidationErrorKind = "missing_oauth_client"
	CloudShellUnavailable ValidationErrorKind = "cloud_shell_unavailable"
)

// ValidationError describes one missing or unusable configuration item.
// Validation never fails with a raw error; callers receive the full list so
// every problem can be reported in a single pass.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors aggregates every problem found for one auth type.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Message
	}
	return strings.Join(msgs, "; ")
}

// HasKind reports whether any collected error carries the given kind.
func (e ValidationErrors) HasKind(kind ValidationErrorKind) bool {
	for _, ve := range e {
		if ve.Kind == kind {
			return true
		}
	}
	return false
}
