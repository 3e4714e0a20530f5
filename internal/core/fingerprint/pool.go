package fingerprint

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool applies fn to every index with at most workers in flight.
// fn must only write state owned by its index. The only error returned is
// context cancellation; per-file failures are recorded by fn.
func runPool(ctx context.Context, workers int, indices []int, fn func(ctx context.Context, idx int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, idx := range indices {
		if gctx.Err() != nil {
			break
		}
		idx := idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, idx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
