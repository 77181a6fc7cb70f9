package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/slack-webapi-client/internal/testutil"
	"github.com/Sternrassler/slack-webapi-client/pkg/client"
	"github.com/Sternrassler/slack-webapi-client/pkg/methods"
	"github.com/rs/zerolog"
)

func newProxyClient(t *testing.T, mock *testutil.MockAPI) *client.Client {
	t.Helper()

	logger := zerolog.Nop()
	cfg := client.DefaultConfig("xoxb-server")
	cfg.BaseURL = mock.URL()
	cfg.RetryPolicy = client.RapidRetryPolicy
	cfg.Logger = &logger

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		flagURL  string
		envURL   string
		expected string
	}{
		{name: "flag takes precedence", flagURL: "http://flag.test/api/", envURL: "http://env.test/api/", expected: "http://flag.test/api/"},
		{name: "env when no flag", envURL: "http://env.test/api/", expected: "http://env.test/api/"},
		{name: "default when neither", expected: client.DefaultBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := apiURL
			defer func() { apiURL = previous }()

			apiURL = tt.flagURL
			t.Setenv("WEBAPI_BASE_URL", tt.envURL)

			if got := getBaseURL(); got != tt.expected {
				t.Errorf("getBaseURL() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestGetToken(t *testing.T) {
	previous := token
	defer func() { token = previous }()

	token = ""
	t.Setenv("WEBAPI_TOKEN", "xoxb-env")
	if got := getToken(); got != "xoxb-env" {
		t.Errorf("getToken() = %q, want env token", got)
	}

	token = "xoxb-flag"
	if got := getToken(); got != "xoxb-flag" {
		t.Errorf("getToken() = %q, want flag token", got)
	}
}

func TestParseRetryPolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    client.RetryPolicy
		wantErr bool
	}{
		{name: "default", want: client.TenRetriesInAboutThirtyMinutes},
		{name: "five", want: client.FiveRetriesInFiveMinutes},
		{name: "RAPID", want: client.RapidRetryPolicy},
		{name: "none", want: client.NoRetryPolicy},
		{name: "forever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRetryPolicy(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRetryPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseRetryPolicy() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	opts, err := parseArgs([]string{"channel=C1", "text=a=b", "file=@" + path})
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}
	defer closeFiles(opts)

	if opts["channel"] != "C1" {
		t.Errorf("channel = %v, want C1", opts["channel"])
	}
	if opts["text"] != "a=b" {
		t.Errorf("text = %v, want a=b", opts["text"])
	}
	if f, ok := opts["file"].(*os.File); !ok || f.Name() != path {
		t.Errorf("file = %v, want opened %s", opts["file"], path)
	}

	for _, bad := range [][]string{{"novalue"}, {"=x"}, {"file=@" + filepath.Join(dir, "missing")}} {
		if _, err := parseArgs(bad); err == nil {
			t.Errorf("parseArgs(%v) should fail", bad)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	server := httptest.NewServer(newMux(newProxyClient(t, mock)))
	defer server.Close()

	// Make one call so the client metrics have samples.
	http.PostForm(server.URL+"/api/api.test", url.Values{})

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "webapi_requests_total") {
		t.Error("Expected webapi_requests_total in metrics output")
	}
}

func TestAPIProxy(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantStatus int
		wantError  string
	}{
		{name: "success", response: testutil.NewOKResponse(`{"ok": true, "ts": "1.2"}`), wantStatus: http.StatusOK},
		{name: "platform error", response: testutil.NewPlatformErrorResponse("not_in_channel"), wantStatus: http.StatusOK, wantError: "not_in_channel"},
		{name: "upstream 503", response: testutil.MockResponse{StatusCode: http.StatusServiceUnavailable}, wantStatus: http.StatusServiceUnavailable, wantError: "upstream_http_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse(methods.ChatPostMessage, tt.response)

			server := httptest.NewServer(newMux(newProxyClient(t, mock)))
			defer server.Close()

			req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/chat.postMessage",
				strings.NewReader(url.Values{"channel": {"C1"}, "text": {"hi"}}.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Authorization", "Bearer xoxp-caller")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if tt.wantError == "" && body["ok"] != true {
				t.Errorf("body = %v, want ok", body)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %s", body["error"], tt.wantError)
			}

			upstream := mock.Requests(methods.ChatPostMessage)
			if len(upstream) != 1 {
				t.Fatalf("upstream requests = %d, want 1", len(upstream))
			}
			if upstream[0].Form.Get("channel") != "C1" {
				t.Errorf("channel = %q, want C1", upstream[0].Form.Get("channel"))
			}
			if got := upstream[0].Header.Get("Authorization"); got != "Bearer xoxp-caller" {
				t.Errorf("Authorization = %q, want caller token", got)
			}
		})
	}
}

func TestAPIProxy_Multipart(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	server := httptest.NewServer(newMux(newProxyClient(t, mock)))
	defer server.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("channels", "C1")
	fw, _ := mw.CreateFormFile("file", "build.log")
	fw.Write([]byte("ok\n"))
	mw.Close()

	resp, err := http.Post(server.URL+"/api/files.upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	upstream := mock.Requests(methods.FilesUpload)
	if len(upstream) != 1 {
		t.Fatalf("upstream requests = %d, want 1", len(upstream))
	}
	if upstream[0].Files["file"] != "build.log" {
		t.Errorf("file name = %q, want build.log", upstream[0].Files["file"])
	}
	if string(upstream[0].FileData["file"]) != "ok\n" {
		t.Errorf("file data = %q", upstream[0].FileData["file"])
	}
	if upstream[0].Form.Get("channels") != "C1" {
		t.Errorf("channels = %q, want C1", upstream[0].Form.Get("channels"))
	}
	if got := upstream[0].Header.Get("Authorization"); got != "Bearer xoxb-server" {
		t.Errorf("Authorization = %q, want server token", got)
	}
}
