// Package result provides the normalized Web API call result and the builder
// that produces it from a raw HTTP response.
package result

import (
	"encoding/json"
	"fmt"
)

// MetadataKey is the result field holding response metadata.
const MetadataKey = "response_metadata"

// Metadata field names folded in from response headers.
const (
	metadataScopes         = "scopes"
	metadataAcceptedScopes = "acceptedScopes"
	metadataRetryAfter     = "retryAfter"
)

// Result is a normalized call result. It is the decoded response body with
// response_metadata always present as an object.
type Result map[string]any

// Metadata is a typed view of response_metadata.
type Metadata struct {
	Warnings       []string
	Messages       []string
	NextCursor     string
	Scopes         []string
	AcceptedScopes []string
	// RetryAfter is the advised delay in seconds, 0 when absent.
	RetryAfter int
}

// OK reports the remote success flag.
func (r Result) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

// ErrorCode returns the remote error code, empty on success.
func (r Result) ErrorCode() string {
	code, _ := r["error"].(string)
	return code
}

// Metadata returns the typed response metadata.
func (r Result) Metadata() Metadata {
	raw, _ := r[MetadataKey].(map[string]any)

	md := Metadata{
		Warnings:       stringSlice(raw["warnings"]),
		Messages:       stringSlice(raw["messages"]),
		Scopes:         stringSlice(raw[metadataScopes]),
		AcceptedScopes: stringSlice(raw[metadataAcceptedScopes]),
	}
	md.NextCursor, _ = raw["next_cursor"].(string)

	switch v := raw[metadataRetryAfter].(type) {
	case int:
		md.RetryAfter = v
	case float64:
		md.RetryAfter = int(v)
	}

	return md
}

// NextCursor returns the next page cursor, empty when there are no more pages.
func (r Result) NextCursor() string {
	return r.Metadata().NextCursor
}

// Decode unmarshals the result into v, typically a response struct.
func (r Result) Decode(v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func stringSlice(v any) []string {
	switch values := v.(type) {
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, item := range values {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
