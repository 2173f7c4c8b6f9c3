package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for query validation.
type ValidationConfig struct {
	MaxQueryLength int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryLength: 32 * 1024,
	}
}

// ValidateQuery checks a query for validity. It returns an *Error describing
// the first validation failure, or nil if the query is valid. Empty sources
// are not an error; defaults are applied by Query.WithDefaults.
func ValidateQuery(q Query, cfg ValidationConfig) *Error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError(CodeEmptyQuery, "query text must not be empty")
	}

	if cfg.MaxQueryLength > 0 && utf8.RuneCountInString(q.Text) > cfg.MaxQueryLength {
		return NewValidationError(CodeQueryTooLong,
			fmt.Sprintf("query text exceeds maximum of %d characters", cfg.MaxQueryLength))
	}

	for _, s := range q.Sources {
		if _, ok := ParseSource(string(s)); !ok {
			return NewValidationError(CodeInvalidSource,
				fmt.Sprintf("unknown source %q (valid: web, scholar, social)", s))
		}
	}

	if _, ok := ParseModelTier(string(q.Tier)); !ok {
		return NewValidationError(CodeInvalidModelTier,
			fmt.Sprintf("unknown model tier %q (valid: quick, research, reasoning)", q.Tier))
	}

	return nil
}

// ParseSources converts caller-supplied source names into Sources.
// Unknown names are reported as a validation error.
func ParseSources(names []string) ([]Source, *Error) {
	var out []Source
	for _, n := range names {
		s, ok := ParseSource(n)
		if !ok {
			return nil, NewValidationError(CodeInvalidSource,
				fmt.Sprintf("unknown source %q (valid: web, scholar, social)", n))
		}
		out = append(out, s)
	}
	return out, nil
}
