package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every item in its own goroutine, at most limit at a
// time (limit <= 0 means no limit). It waits for all of them and returns the
// first error encountered. The context passed to action is cancelled once an
// action fails.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for _, item := range items {
		group.Go(func() error {
			return action(groupCtx, item)
		})
	}

	return group.Wait()
}
