package pagination

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/Sternrassler/slack-webapi-client/pkg/logging"
	"github.com/Sternrassler/slack-webapi-client/pkg/methods"
	"github.com/Sternrassler/slack-webapi-client/pkg/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultPageSize is used when the initial options carry no limit.
const DefaultPageSize = 200

const (
	limitOption  = "limit"
	cursorOption = "cursor"
)

var webapiPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webapi_pages_total",
	Help: "Total pages fetched by method",
}, []string{"method"})

// Caller issues a single Web API call. *client.Client implements it.
type Caller interface {
	APICall(ctx context.Context, method string, options any) (result.Result, error)
}

// Iterator yields one result per page.
type Iterator struct {
	caller   Caller
	method   string
	static   map[string]any
	pageSize int
	logger   zerolog.Logger

	cursor  string
	started bool
	done    bool
	page    result.Result
	index   int
	err     error
}

// New creates an iterator over method. A numeric limit in options becomes the
// page size for every request; a cursor in options starts the walk there.
// options is copied.
func New(caller Caller, method string, options map[string]any) *Iterator {
	logger := logging.NewLogger(logging.ComponentPagination).With().Str("method", method).Logger()
	return NewWithLogger(caller, method, options, logger)
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(caller Caller, method string, options map[string]any, logger zerolog.Logger) *Iterator {
	if !methods.IsPaginated(method) {
		logger.Warn().Msgf("%s is not known to support cursor pagination; pages past the first may not be returned", method)
	}

	static := make(map[string]any, len(options))
	for k, v := range options {
		static[k] = v
	}

	pageSize := DefaultPageSize
	if limit, ok := asInt(static[limitOption]); ok {
		pageSize = limit
	}
	delete(static, limitOption)

	var cursor string
	if c, ok := static[cursorOption].(string); ok {
		cursor = c
	}
	delete(static, cursorOption)

	return &Iterator{
		caller:   caller,
		method:   method,
		static:   static,
		pageSize: pageSize,
		logger:   logger,
		cursor:   cursor,
		index:    -1,
	}
}

// Next fetches the next page. It returns false when the walk is complete or
// a call failed; check Err to tell the two apart.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	if it.started && it.cursor == "" {
		it.done = true
		it.page = nil
		return false
	}

	opts := make(map[string]any, len(it.static)+2)
	for k, v := range it.static {
		opts[k] = v
	}
	opts[limitOption] = it.pageSize
	if it.cursor != "" {
		opts[cursorOption] = it.cursor
	}

	it.logger.Debug().
		Str("cursor", it.cursor).
		Int("page", it.index+1).
		Msg("Fetching page")

	page, err := it.caller.APICall(ctx, it.method, opts)
	it.started = true
	if err != nil {
		it.err = fmt.Errorf("fetch page %d of %s: %w", it.index+1, it.method, err)
		it.page = nil
		return false
	}

	webapiPagesTotal.WithLabelValues(it.method).Inc()
	it.page = page
	it.index++
	it.cursor = page.NextCursor()
	return true
}

// Page returns the page fetched by the last successful Next.
func (it *Iterator) Page() result.Result {
	return it.page
}

// Index returns the zero-based index of the current page.
func (it *Iterator) Index() int {
	return it.index
}

// PageSize returns the limit sent with every request.
func (it *Iterator) PageSize() int {
	return it.pageSize
}

// Err returns the error that stopped the iterator, if any.
func (it *Iterator) Err() error {
	return it.err
}

func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
