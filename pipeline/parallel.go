package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for every index in [0, n) on at most workers goroutines. The first error
// cancels the context handed to the remaining calls and is returned.
func forEach(ctx context.Context, workers, n int, fn func(ctx context.Context, idx int) error) error {
	if workers < 1 {
		workers = 1
	}
	errs, groupCtx := errgroup.WithContext(ctx)
	errs.SetLimit(workers)
	for idx := 0; idx < n && groupCtx.Err() == nil; idx++ {
		errs.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return fn(groupCtx, idx)
		})
	}
	if err := errs.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
