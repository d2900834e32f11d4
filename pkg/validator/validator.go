package validator

import (
	"strings"
	"unicode/utf8"
)

// Firestore rejects document ids longer than 1500 bytes
const maxRecordIDLength = 1500

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// ValidateRecordID checks that id can name a document: non-empty, valid
// UTF-8, no path separators, not "." or "..".
func ValidateRecordID(id string) bool {
	if id == "" || len(id) > maxRecordIDLength || !utf8.ValidString(id) {
		return false
	}
	if id == "." || id == ".." {
		return false
	}
	return !strings.Contains(id, "/")
}

// SanitizeRecordIDs drops invalid ids and keeps the first occurrence of
// each valid one.
func SanitizeRecordIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !ValidateRecordID(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
