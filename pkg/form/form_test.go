package form

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncode_URLEncoded(t *testing.T) {
	options := map[string]any{
		"channel":  "C1",
		"text":     "hello & goodbye",
		"count":    42,
		"ratio":    0.5,
		"as_user":  true,
		"unfurl":   false,
		"skip":     nil,
		"blocks":   []map[string]any{{"type": "divider"}},
		"metadata": map[string]string{"event_type": "x"},
	}

	body, headers, err := Encode(options)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if got := headers["Content-Type"]; got != ContentTypeURLEncoded {
		t.Errorf("Content-Type = %q, want %q", got, ContentTypeURLEncoded)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}

	want := map[string]string{
		"channel":  "C1",
		"text":     "hello & goodbye",
		"count":    "42",
		"ratio":    "0.5",
		"as_user":  "true",
		"unfurl":   "false",
		"blocks":   `[{"type":"divider"}]`,
		"metadata": `{"event_type":"x"}`,
	}
	if len(values) != len(want) {
		t.Errorf("got %d fields, want %d: %v", len(values), len(want), values)
	}
	for k, v := range want {
		if got := values.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if values.Has("skip") {
		t.Error("nil option should be dropped")
	}
}

func TestEncode_Deterministic(t *testing.T) {
	options := map[string]any{"b": "2", "a": "1", "c": 3, "d": true}

	first, _, err := Encode(options)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _, _ := Encode(options)
		if !bytes.Equal(first, again) {
			t.Fatalf("Encode() not stable: %q vs %q", first, again)
		}
	}
	if string(first) != "a=1&b=2&c=3&d=true" {
		t.Errorf("Encode() = %q", first)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []map[string]any{
		{},
		{"only": ""},
		{"unicode": "héllo wörld ✓", "space": "a b"},
		{"int8": int8(-3), "uint": uint(9), "float32": float32(1.25)},
	}

	for _, options := range tests {
		body, _, err := Encode(options)
		if err != nil {
			t.Fatalf("Encode(%v) error = %v", options, err)
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("ParseQuery() error = %v", err)
		}
		for k, v := range options {
			want, _ := stringify(v)
			if got := values.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
	}
}

func TestEncode_MultipartSelected(t *testing.T) {
	tests := []struct {
		name         string
		value        any
		wantFilename string
		wantContent  string
	}{
		{
			name:         "byte slice",
			value:        []byte("raw bytes"),
			wantFilename: DefaultFilename,
			wantContent:  "raw bytes",
		},
		{
			name:         "reader",
			value:        strings.NewReader("from reader"),
			wantFilename: DefaultFilename,
			wantContent:  "from reader",
		},
		{
			name:         "named file",
			value:        File{Name: "/tmp/report.csv", Reader: strings.NewReader("a,b")},
			wantFilename: "report.csv",
			wantContent:  "a,b",
		},
		{
			name:         "file without reader",
			value:        &File{Name: "empty.txt"},
			wantFilename: "empty.txt",
			wantContent:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := map[string]any{
				"channels": "C1",
				"file":     tt.value,
				"count":    2,
			}
			if !HasBinary(options) {
				t.Fatal("HasBinary() = false")
			}

			body, headers, err := Encode(options)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			form := parseMultipart(t, body, headers["Content-Type"])

			if got := form.Value["channels"]; len(got) != 1 || got[0] != "C1" {
				t.Errorf("channels = %v", got)
			}
			if got := form.Value["count"]; len(got) != 1 || got[0] != "2" {
				t.Errorf("count = %v", got)
			}

			files := form.File["file"]
			if len(files) != 1 {
				t.Fatalf("file parts = %d, want 1", len(files))
			}
			if files[0].Filename != tt.wantFilename {
				t.Errorf("filename = %q, want %q", files[0].Filename, tt.wantFilename)
			}
			f, err := files[0].Open()
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer f.Close()
			content, _ := io.ReadAll(f)
			if string(content) != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
		})
	}
}

func TestEncode_OSFileUsesBaseName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.txt")
	if err := os.WriteFile(path, []byte("file body"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	body, headers, err := Encode(map[string]any{"file": f})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	form := parseMultipart(t, body, headers["Content-Type"])
	if got := form.File["file"][0].Filename; got != "upload.txt" {
		t.Errorf("filename = %q, want upload.txt", got)
	}
}

func TestHasBinary_NoBinary(t *testing.T) {
	if HasBinary(map[string]any{"a": "x", "b": 1, "c": []string{"y"}}) {
		t.Error("HasBinary() = true for plain options")
	}
}

func TestEncode_UnencodableValue(t *testing.T) {
	_, _, err := Encode(map[string]any{"bad": func() {}})
	if err == nil {
		t.Fatal("expected error for function value")
	}
	if !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("error should name the option: %v", err)
	}
}

func parseMultipart(t *testing.T, body []byte, contentType string) *multipart.Form {
	t.Helper()

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType(%q) error = %v", contentType, err)
	}
	if mediaType != ContentTypeMultipart {
		t.Fatalf("media type = %q, want %q", mediaType, ContentTypeMultipart)
	}

	form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm() error = %v", err)
	}
	return form
}
