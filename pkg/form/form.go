// Package form serializes call options into a request body.
//
// Options without binary content become an application/x-www-form-urlencoded
// body. As soon as one option carries binary content ([]byte, io.Reader, File)
// the whole body switches to multipart/form-data with each binary option
// attached as a named file.
package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
)

// Content types produced by Encode.
const (
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypeMultipart  = "multipart/form-data"
)

// DefaultFilename is used for binary values with no known name.
const DefaultFilename = "Untitled"

// File is binary content with an optional file name.
type File struct {
	Name   string
	Reader io.Reader
}

func (f File) reader() io.Reader {
	if f.Reader == nil {
		return bytes.NewReader(nil)
	}
	return f.Reader
}

type field struct {
	key    string
	value  string
	binary io.Reader
	name   string
}

// Encode serializes options and returns the body together with the headers
// that must accompany it. Nil values are dropped, primitives are stringified
// and nested structures are JSON encoded. Keys are emitted in sorted order.
func Encode(options map[string]any) ([]byte, map[string]string, error) {
	fields, hasBinary, err := flatten(options)
	if err != nil {
		return nil, nil, err
	}

	if hasBinary {
		return encodeMultipart(fields)
	}

	values := url.Values{}
	for _, f := range fields {
		values.Set(f.key, f.value)
	}
	return []byte(values.Encode()), map[string]string{"Content-Type": ContentTypeURLEncoded}, nil
}

// HasBinary reports whether any option value is binary content.
func HasBinary(options map[string]any) bool {
	for _, v := range options {
		if _, _, ok := asBinary(v); ok {
			return true
		}
	}
	return false
}

func flatten(options map[string]any) ([]field, bool, error) {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]field, 0, len(keys))
	hasBinary := false
	for _, key := range keys {
		value := options[key]
		if isNil(value) {
			continue
		}

		if r, name, ok := asBinary(value); ok {
			hasBinary = true
			fields = append(fields, field{key: key, binary: r, name: name})
			continue
		}

		s, err := stringify(value)
		if err != nil {
			return nil, false, fmt.Errorf("encode option %q: %w", key, err)
		}
		fields = append(fields, field{key: key, value: s})
	}

	return fields, hasBinary, nil
}

func encodeMultipart(fields []field) ([]byte, map[string]string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if f.binary == nil {
			if err := w.WriteField(f.key, f.value); err != nil {
				return nil, nil, fmt.Errorf("write field %q: %w", f.key, err)
			}
			continue
		}

		part, err := w.CreateFormFile(f.key, f.name)
		if err != nil {
			return nil, nil, fmt.Errorf("create file part %q: %w", f.key, err)
		}
		if _, err := io.Copy(part, f.binary); err != nil {
			return nil, nil, fmt.Errorf("copy file part %q: %w", f.key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return buf.Bytes(), map[string]string{"Content-Type": w.FormDataContentType()}, nil
}

// asBinary returns the reader and file name for binary option values.
func asBinary(v any) (io.Reader, string, bool) {
	switch b := v.(type) {
	case []byte:
		return bytes.NewReader(b), DefaultFilename, true
	case File:
		return b.reader(), filename(b.Name), true
	case *File:
		if b == nil {
			return nil, "", false
		}
		return b.reader(), filename(b.Name), true
	case io.Reader:
		name := DefaultFilename
		if named, ok := b.(interface{ Name() string }); ok {
			name = filename(named.Name())
		}
		return b, name, true
	}
	return nil, "", false
}

func filename(name string) string {
	if name == "" {
		return DefaultFilename
	}
	return filepath.Base(name)
}

func stringify(v any) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
