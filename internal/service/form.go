package service

import (
	"sort"
	"strings"
)

// NonFieldErrors is the FieldErrors key for errors that belong to the whole form.
const NonFieldErrors = "__all__"

// FieldErrors maps form field names to their error messages.
type FieldErrors map[string][]string

// Add appends msg to field unless the field already carries it.
func (e FieldErrors) Add(field, msg string) {
	for _, m := range e[field] {
		if m == msg {
			return
		}
	}
	e[field] = append(e[field], msg)
}

// Merge adds every message from other.
func (e FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
}

// Get returns the messages for field.
func (e FieldErrors) Get(field string) []string {
	return e[field]
}

// Has reports whether field has any error.
func (e FieldErrors) Has(field string) bool {
	return len(e[field]) > 0
}

// FormError is returned when submitted input fails validation.
type FormError struct {
	Fields FieldErrors
}

func (e *FormError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func newFormError(fields FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &FormError{Fields: fields}
}
