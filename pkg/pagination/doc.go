// Package pagination walks cursor-paginated Web API methods.
//
// A paginated method returns response_metadata.next_cursor; the next page is
// requested with that value as cursor and the same limit. An empty cursor
// ends the walk. Pages are fetched sequentially since each request depends
// on the previous response.
//
// Bare mode iterates lazily:
//
//	it := pagination.New(c, "conversations.list", client.Options{"limit": 100})
//	for it.Next(ctx) {
//		page := it.Page()
//		...
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// Driven mode folds pages into an accumulator until a predicate holds:
//
//	count, err := pagination.Reduce(ctx, it,
//		func(page result.Result) bool { return page["has_more"] == false },
//		func(acc int, page result.Result, index int) int { return acc + 1 })
//
// An iterator is forward-only and cannot be restarted.
package pagination
