package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a difference between an inspected table and
// the table its descriptor expects.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err joins the validation errors, or returns nil if there are none.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// Validate compares an inspected table with the desired one. Columns are
// matched by name, not by position: ADD COLUMN appends to the physical
// table while descriptors keep attributes before the surrogate key.
func Validate(actual, desired *Table) *ValidationResult {
	result := &ValidationResult{}
	errorf := func(column, format string, args ...any) {
		result.Errors = append(result.Errors, &ValidationError{Table: desired.Name, Column: column, Message: fmt.Sprintf(format, args...)})
	}
	for _, want := range desired.Columns {
		got, ok := actual.Column(want.Name)
		switch {
		case !ok:
			errorf(want.Name, "column is missing")
		case got.Type != want.Type:
			errorf(want.Name, "type is %s, expected %s", got.Type.SQLType(), want.Type.SQLType())
		case got.Nullable != want.Nullable:
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   desired.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("nullable is %t, expected %t", got.Nullable, want.Nullable),
			})
		}
	}
	for _, got := range actual.Columns {
		if _, ok := desired.Column(got.Name); !ok {
			errorf(got.Name, "unexpected column")
		}
	}
	if !slices.Equal(actual.PrimaryKey, desired.PrimaryKey) {
		errorf("", "primary key is (%s), expected (%s)",
			strings.Join(actual.PrimaryKey, ", "), strings.Join(desired.PrimaryKey, ", "))
	}
	return result
}
