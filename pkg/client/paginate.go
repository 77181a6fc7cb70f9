package client

import (
	"github.com/Sternrassler/slack-webapi-client/pkg/logging"
	"github.com/Sternrassler/slack-webapi-client/pkg/pagination"
)

// Paginate returns an iterator over the pages of method. Every page is
// fetched through APICall, so pages share the client's queue, retries and
// rate limit handling.
func (c *Client) Paginate(method string, options any) (*pagination.Iterator, error) {
	opts, err := normalizeOptions(options)
	if err != nil {
		return nil, err
	}

	logger := c.baseLogger.With().
		Str("component", logging.ComponentPagination).
		Str("method", method).
		Logger()

	return pagination.NewWithLogger(c, method, opts, logger), nil
}
