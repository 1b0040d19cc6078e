package wallpaper

import (
	"github.com/iscle/haven-go/internal/errors"
)

var (
	// ErrNoPhotosFound means the search returned no pages or no results.
	ErrNoPhotosFound = errors.NewStd("no photos found for query")

	// ErrNoLandscapePhotos means every attempted page had no landscape photo.
	ErrNoLandscapePhotos = errors.NewStd("no landscape photos found for query")
)

func emptyResultError(sentinel error, query string, context ...any) error {
	builder := errors.New(sentinel).
		Component("wallpaper").
		Category(errors.CategoryImageFetch).
		Context("query", query)
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

func wrapError(err error, operation, query string) error {
	return errors.New(err).
		Component("wallpaper").
		Context("operation", operation).
		Context("query", query).
		Build()
}
