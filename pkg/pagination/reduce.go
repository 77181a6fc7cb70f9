package pagination

import (
	"context"

	"github.com/Sternrassler/slack-webapi-client/pkg/result"
)

// StopFunc reports whether the walk should end after page.
type StopFunc func(page result.Result) bool

// ReduceFunc folds page into acc. index is the zero-based page index.
type ReduceFunc[A any] func(acc A, page result.Result, index int) A

// Reduce drives it, folding every page into an accumulator that starts at
// the zero value of A. After each page is folded, shouldStop is consulted;
// the walk ends when it returns true or the pages run out. A nil reduce
// leaves the accumulator untouched. On error the zero value is returned.
func Reduce[A any](ctx context.Context, it *Iterator, shouldStop StopFunc, reduce ReduceFunc[A]) (A, error) {
	var acc A
	for it.Next(ctx) {
		page := it.Page()
		if reduce != nil {
			acc = reduce(acc, page, it.Index())
		}
		if shouldStop != nil && shouldStop(page) {
			return acc, nil
		}
	}
	if err := it.Err(); err != nil {
		var zero A
		return zero, err
	}
	return acc, nil
}

// All collects every page.
func All(ctx context.Context, it *Iterator) ([]result.Result, error) {
	return Reduce(ctx, it, nil, func(acc []result.Result, page result.Result, _ int) []result.Result {
		return append(acc, page)
	})
}
