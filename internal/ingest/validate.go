// Package ingest turns uploaded CSV rows into canonical leads and stores them.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/leadscore/internal/model"
)

// RejectKind tags why a row was rejected.
type RejectKind string

const (
	RejectMissingFields RejectKind = "missing_fields"
	RejectInvalidEmail  RejectKind = "invalid_email"
	RejectMalformedRow  RejectKind = "malformed_row"
)

// RowError is a typed row rejection. It matches model.ErrValidation under
// eris.Is.
type RowError struct {
	Row     int
	Kind    RejectKind
	Missing []string
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Is reports ErrValidation so callers can test the taxonomy.
func (e *RowError) Is(target error) bool {
	return target == model.ErrValidation
}

// requiredFields are checked in this order so messages are stable.
var requiredFields = []string{"name", "email", "role", "industry"}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateRecord builds a canonical Lead from one keyed CSV row or rejects it.
// row is the 1-based data row position used for reporting.
func ValidateRecord(row int, fields map[string]string) (model.Lead, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	var missing []string
	for _, f := range requiredFields {
		if get(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return model.Lead{}, &RowError{
			Row:     row,
			Kind:    RejectMissingFields,
			Missing: missing,
			Message: "missing required fields: " + strings.Join(missing, ", "),
		}
	}

	email := strings.ToLower(get("email"))
	if !emailPattern.MatchString(email) {
		return model.Lead{}, &RowError{
			Row:     row,
			Kind:    RejectInvalidEmail,
			Message: fmt.Sprintf("invalid email %q", get("email")),
		}
	}

	return model.Lead{
		ID:       uuid.NewString(),
		Name:     get("name"),
		Email:    email,
		Role:     get("role"),
		Industry: get("industry"),
		Company:  get("company"),
		LinkedIn: firstNonEmpty(get("linkedin"), get("linkedin_url")),
		Phone:    get("phone"),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
