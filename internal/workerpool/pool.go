// Package workerpool runs a function over a slice with bounded concurrency.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run calls fn for each item using at most workers goroutines and returns
// the first error. Items not yet started are skipped once ctx is done or
// fn has failed.
func Run[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}

// Map calls fn for each item using at most workers goroutines and returns
// the results in input order. Items for which fn reports false are left
// out.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, bool)) []R {
	type slot struct {
		val R
		ok  bool
	}
	slots := make([]slot, len(items))
	indexes := make([]int, len(items))
	for i := range indexes {
		indexes[i] = i
	}

	_ = Run(ctx, indexes, workers, func(ctx context.Context, i int) error {
		v, ok := fn(ctx, items[i])
		slots[i] = slot{val: v, ok: ok}
		return nil
	})

	out := make([]R, 0, len(items))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.val)
		}
	}
	return out
}
