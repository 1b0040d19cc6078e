package datastore

import (
	"github.com/iscle/haven-go/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrHistoryNotFound indicates the photo has never been shown.
	ErrHistoryNotFound = errors.NewStd("history record not found")

	// ErrStoreNotConfigured indicates neither SQLite nor MySQL output is enabled.
	ErrStoreNotConfigured = errors.NewStd("no persistent store configured")
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

// notFoundError wraps a sentinel so it matches both errors.Is and errors.IsNotFound.
func notFoundError(sentinel error, operation string, context ...any) error {
	builder := errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}
