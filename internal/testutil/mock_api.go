// Package testutil provides testing utilities for the Web API client.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path under which the mock serves methods.
const APIPrefix = "/api/"

// MockResponse defines the behavior for one mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// CapturedRequest is a request as the mock received it.
type CapturedRequest struct {
	Method string
	Header http.Header
	Body   []byte
	Form   url.Values
	// Files maps multipart field names to file names.
	Files map[string]string
	// FileData maps multipart field names to file contents.
	FileData map[string][]byte
}

// MockAPI is a configurable mock Web API server for testing.
type MockAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse
	requests  []CapturedRequest

	inFlight    int
	maxInFlight int
}

// NewMockAPI creates and starts a new mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:  make(map[string]http.HandlerFunc),
		sequences: make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the base URL to configure clients with.
func (m *MockAPI) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears captured requests and concurrency tracking.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.maxInFlight = 0
}

// SetHandler sets a custom handler for a method.
func (m *MockAPI) SetHandler(method string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
	delete(m.sequences, method)
}

// SetResponse makes every call to method return resp.
func (m *MockAPI) SetResponse(method string, resp MockResponse) {
	m.SetSequence(method, resp)
}

// SetSequence makes calls to method return responses in order. The last one
// repeats once the others are used up.
func (m *MockAPI) SetSequence(method string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, method)
	m.sequences[method] = append([]MockResponse(nil), responses...)
}

// Requests returns the captured requests for method, or all requests when
// method is empty.
func (m *MockAPI) Requests(method string) []CapturedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CapturedRequest
	for _, r := range m.requests {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests received for method, or in
// total when method is empty.
func (m *MockAPI) RequestCount(method string) int {
	return len(m.Requests(method))
}

// MaxInFlight returns the highest number of requests handled at once.
func (m *MockAPI) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, APIPrefix)
	captured := capture(method, r)

	m.mu.Lock()
	m.requests = append(m.requests, captured)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	handler, hasHandler := m.handlers[method]
	resp, hasResp := m.next(method)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	switch {
	case hasHandler:
		handler(w, r)
	case hasResp:
		writeResponse(w, resp)
	default:
		writeResponse(w, NewOKResponse(`{"ok": true}`))
	}
}

// next pops the next scripted response. Caller holds m.mu.
func (m *MockAPI) next(method string) (MockResponse, bool) {
	seq := m.sequences[method]
	if len(seq) == 0 {
		return MockResponse{}, false
	}
	resp := seq[0]
	if len(seq) > 1 {
		m.sequences[method] = seq[1:]
	}
	return resp, true
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func capture(method string, r *http.Request) CapturedRequest {
	body, _ := io.ReadAll(r.Body)
	captured := CapturedRequest{
		Method:   method,
		Header:   r.Header.Clone(),
		Body:     body,
		Form:     url.Values{},
		Files:    map[string]string{},
		FileData: map[string][]byte{},
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return captured
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			captured.Form = values
		}
	case "multipart/form-data":
		reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			if part.FileName() != "" {
				captured.Files[part.FormName()] = part.FileName()
				captured.FileData[part.FormName()] = data
			} else {
				captured.Form.Add(part.FormName(), string(data))
			}
			part.Close()
		}
	}
	return captured
}

// NewOKResponse creates a 200 response with a JSON body.
func NewOKResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewPageResponse creates a 200 response for one page of a paginated method.
func NewPageResponse(items string, nextCursor string) MockResponse {
	return NewOKResponse(fmt.Sprintf(
		`{"ok": true, "items": %s, "response_metadata": {"next_cursor": %q}}`, items, nextCursor))
}

// NewPlatformErrorResponse creates a 200 response reporting ok: false.
func NewPlatformErrorResponse(code string) MockResponse {
	return NewOKResponse(fmt.Sprintf(`{"ok": false, "error": %q}`, code))
}

// NewRateLimitResponse creates a 429 response advising a retry after
// retryAfter seconds.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"ok": false, "error": "ratelimited"}`,
		Headers: map[string]string{
			"Retry-After":  fmt.Sprintf("%d", retryAfter),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
