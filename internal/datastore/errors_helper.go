// Package datastore provides error handling helpers for claim store operations
package datastore

import (
	"strings"

	"github.com/neighbourly/canvass-go/internal/errors"
	"gorm.io/gorm"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error for bad input
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

// conflictError creates a conflict error for a lost claim race
func conflictError(err error, operation, slug string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("operation", operation).
		Context("slug", slug).
		Build()
}

// notFoundError creates a not found error for a missing active claim
func notFoundError(resource, identifier string) error {
	return errors.Newf("%s not found", resource).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

// isConstraintViolation checks if an error is a unique constraint violation
// in a database-agnostic way. gorm's error translation covers the drivers
// that support it; the string match catches the rest.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "duplicate entry") ||
		strings.Contains(errStr, "constraint failed")
}

// IsConflict reports whether err represents a lost claim race.
func IsConflict(err error) bool {
	return errors.IsCategory(err, errors.CategoryConflict)
}

// IsNotFound reports whether err represents a missing active claim.
func IsNotFound(err error) bool {
	return errors.IsCategory(err, errors.CategoryNotFound)
}
