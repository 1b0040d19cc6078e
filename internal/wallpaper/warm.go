package wallpaper

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
)

// maxWarmConcurrency bounds concurrent fetches while warming.
const maxWarmConcurrency = 2

// WarmResult reports what Warm did for one query.
type WarmResult struct {
	Query   string
	Fetched bool // false when the cache already had photos
	Err     error
}

// Warm fills the cache of every query that has no cached photos. One failing
// query does not stop the others; all failures are joined into the error.
func (s *Service) Warm(ctx context.Context, queries []string) ([]WarmResult, error) {
	seen := make(map[string]struct{}, len(queries))
	unique := make([]string, 0, len(queries))
	for _, q := range queries {
		q = s.normalizeQuery(q)
		key := model.CacheKey(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, q)
	}

	results := make([]WarmResult, len(unique))

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(maxWarmConcurrency)
	for i, query := range unique {
		g.Go(func() error {
			fetched, err := s.warmOne(ctx, query)
			results[i] = WarmResult{Query: query, Fetched: fetched, Err: err}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.WithContext(ctx).Info("cache warm finished",
		logger.Int("queries", len(unique)),
		logger.Int("failed", len(errs)))

	return results, errors.Join(errs...)
}

func (s *Service) warmOne(ctx context.Context, query string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	unlock := s.fetchLocks.Lock(model.CacheKey(query))
	defer unlock()

	has, err := s.cache.HasCachedPhotos(ctx, query)
	if err != nil {
		return false, wrapError(err, "warm", query)
	}
	if has {
		return false, nil
	}

	s.metrics.RecordCacheMiss()
	if _, err := s.fetchAndCache(ctx, query); err != nil {
		return false, err
	}
	return true, nil
}
