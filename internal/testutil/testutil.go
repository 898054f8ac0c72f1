// Package testutil provides the shared HTTP test fixtures the debug
// diagnostics handlers (internal/diagnostics) are exercised through:
// constructing a request/recorder pair without every _test.go file
// repeating the httptest boilerplate.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertStatusCode checks that the response status code matches
// expected, for the diagnostics HTTP handler tests.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request against one of
// diagnostics' debug endpoints.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
