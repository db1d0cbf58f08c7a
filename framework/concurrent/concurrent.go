package concurrent

import (
	"context"
	"errors"
	"sync"
)

// ForEachWithLimit executes fn for each item with at most limit calls in flight.
// Every item is attempted; all errors are joined.
func ForEachWithLimit[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	_, err := MapWithLimit(ctx, items, limit, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}

// MapWithLimit applies fn to each item with a concurrency limit.
// Order of results matches order of items.
func MapWithLimit[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if limit <= 0 {
		limit = 1
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}

			results[i], errs[i] = fn(ctx, item)
		}(i, item)
	}

	wg.Wait()

	return results, errors.Join(errs...)
}
