package result

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/Sternrassler/slack-webapi-client/pkg/ratelimit"
	"github.com/klauspost/compress/gzip"
)

// Response headers folded into metadata.
const (
	HeaderOAuthScopes         = "X-OAuth-Scopes"
	HeaderAcceptedOAuthScopes = "X-Accepted-OAuth-Scopes"
)

// gzipContentType marks binary file exports that are not JSON envelopes.
const gzipContentType = "application/gzip"

// Response is the raw HTTP exchange outcome handed to Build.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsGzip reports whether the response is a gzip file export.
func (r Response) IsGzip() bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == gzipContentType
}

// Build converts a raw response into a Result.
//
// A body that is not a JSON object becomes {ok: false, error: <body>}.
// A gzip export becomes {ok: true, file_data: [...]}, one entry per line.
func Build(resp Response) Result {
	var r Result
	if resp.IsGzip() {
		r = decodeGzip(resp.Body)
	} else {
		r = decodeJSON(resp.Body)
	}

	md, ok := r[MetadataKey].(map[string]any)
	if !ok {
		md = map[string]any{}
		r[MetadataKey] = md
	}

	if len(resp.Header.Values(HeaderOAuthScopes)) > 0 {
		md[metadataScopes] = splitScopes(resp.Header.Get(HeaderOAuthScopes))
	}
	if len(resp.Header.Values(HeaderAcceptedOAuthScopes)) > 0 {
		md[metadataAcceptedScopes] = splitScopes(resp.Header.Get(HeaderAcceptedOAuthScopes))
	}
	if retryAfter, err := ratelimit.ParseRetryAfter(resp.Header); err == nil {
		md[metadataRetryAfter] = int(retryAfter.Seconds())
	}

	return r
}

func decodeJSON(body []byte) Result {
	var r Result
	if err := json.Unmarshal(body, &r); err != nil || r == nil {
		return Result{"ok": false, "error": string(body)}
	}
	return r
}

func decodeGzip(body []byte) Result {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return Result{"ok": false, "error": fmt.Sprintf("gzip decode: %v", err)}
	}
	defer zr.Close()

	lines := []any{}
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			lines = append(lines, line)
			continue
		}
		lines = append(lines, decoded)
	}
	if err := scanner.Err(); err != nil {
		return Result{"ok": false, "error": fmt.Sprintf("gzip decode: %v", err)}
	}

	return Result{"ok": true, "file_data": lines}
}

func splitScopes(header string) []string {
	parts := strings.Split(header, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, p)
		}
	}
	return scopes
}
