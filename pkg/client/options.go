package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/Sternrassler/slack-webapi-client/pkg/methods"
	"github.com/rs/zerolog"
)

// Options are the arguments of one call.
type Options = map[string]any

const (
	tokenOption  = "token"
	teamIDOption = "team_id"
)

// normalizeOptions copies options into a fresh map. Primitives are rejected.
func normalizeOptions(options any) (map[string]any, error) {
	switch o := options.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(o))
		for k, v := range o {
			out[k] = v
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(o))
		for k, v := range o {
			out[k] = v
		}
		return out, nil
	case url.Values:
		out := make(map[string]any, len(o))
		for k, v := range o {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, nil
	}

	v := reflect.ValueOf(options)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return map[string]any{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, &ArgumentError{Reason: fmt.Sprintf("options map must have string keys, got %T", options)}
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Struct:
		data, err := json.Marshal(options)
		if err != nil {
			return nil, &ArgumentError{Reason: "encode options struct", Err: err}
		}
		out := map[string]any{}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, &ArgumentError{Reason: "encode options struct", Err: err}
		}
		return out, nil
	default:
		return nil, &ArgumentError{Reason: fmt.Sprintf("options must be a mapping, got %T", options)}
	}
}

// fallbackTextMethods post messages that clients without block support
// render from the top-level text.
var fallbackTextMethods = map[string]bool{
	methods.ChatPostMessage:     true,
	methods.ChatPostEphemeral:   true,
	methods.ChatUpdate:          true,
	methods.ChatScheduleMessage: true,
}

func warnDeprecated(logger zerolog.Logger, method string) {
	if prefix, ok := methods.DeprecatedPrefix(method); ok {
		logger.Warn().
			Str("deprecated_prefix", prefix).
			Msgf("%s is deprecated. Please check the changelog for the replacement method", method)
	}
}

// warnMessageShape flags message payloads that render poorly.
func warnMessageShape(logger zerolog.Logger, method string, args map[string]any) {
	if fallbackTextMethods[method] && missingText(args) && (present(args["blocks"]) || present(args["attachments"])) {
		logger.Warn().Msgf("The top-level `text` argument is missing in the request payload for a %s call. "+
			"Provide it so notifications and screen readers have something to show.", method)
	}

	if ts, ok := args["thread_ts"]; ok && isNumber(ts) {
		logger.Warn().Msgf("The given thread_ts value in the request payload for a %s call is a number. "+
			"Use a string value instead.", method)
	}
}

func missingText(args map[string]any) bool {
	text, ok := args["text"]
	if !ok || text == nil {
		return true
	}
	s, isString := text.(string)
	return isString && strings.TrimSpace(s) == ""
}

func present(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	default:
		return true
	}
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
