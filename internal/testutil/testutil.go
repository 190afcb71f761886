package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Request represents a test HTTP request
type Request struct {
	Method      string
	Path        string
	Body        any
	RawBody     []byte
	Headers     map[string]string
	QueryParams map[string]string
	Cookies     []*http.Cookie
}

// Response represents a test HTTP response
type Response struct {
	*httptest.ResponseRecorder
	Body map[string]any
}

// Do runs req against handler without a network listener and decodes a JSON
// object body when there is one.
func Do(t *testing.T, handler http.Handler, req Request) *Response {
	t.Helper()

	body := req.RawBody
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		body = b
	}

	httpReq := httptest.NewRequest(req.Method, req.Path, bytes.NewReader(body))
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if len(req.QueryParams) > 0 {
		q := httpReq.URL.Query()
		for key, value := range req.QueryParams {
			q.Add(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}
	if len(body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httpReq)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Logf("Response body is not a JSON object: %v", err)
		}
	}
	return &Response{ResponseRecorder: recorder, Body: decoded}
}

// DoAuthenticated is Do with a bearer token.
func DoAuthenticated(t *testing.T, handler http.Handler, req Request, token string) *Response {
	t.Helper()
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers["Authorization"] = "Bearer " + token
	return Do(t, handler, req)
}

// ErrorCode returns the "code" field of a JSON error body.
func (r *Response) ErrorCode() string {
	code, _ := r.Body["code"].(string)
	return code
}
