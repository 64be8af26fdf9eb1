package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nlbx/reqsched/internal/apperr"
)

func TestRequestSendsBodyForPost(t *testing.T) {
	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	resp, err := c.Request(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"X-Custom": "yes"}, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if string(gotBody) != `{"a":1}` {
		t.Errorf("body sent = %q, want {\"a\":1}", gotBody)
	}
	if gotHeader != "yes" {
		t.Errorf("X-Custom header = %q, want yes", gotHeader)
	}
}

func TestRequestIgnoresBodyForGet(t *testing.T) {
	var gotBodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBodyLen = len(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(time.Second)
	_, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil, []byte(`{"should":"be ignored"}`))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if gotBodyLen != 0 {
		t.Errorf("GET request body length = %d, want 0", gotBodyLen)
	}
}

func TestRequestIgnoresBodyForOptions(t *testing.T) {
	var gotBodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBodyLen = len(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(time.Second)
	_, err := c.Request(context.Background(), http.MethodOptions, srv.URL, nil, []byte(`{"should":"be ignored"}`))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if gotBodyLen != 0 {
		t.Errorf("OPTIONS request body length = %d, want 0", gotBodyLen)
	}
}

func TestRequestReturnsNoErrorForHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(time.Second)
	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("Request() error = %v, want nil (5xx is not a transport error)", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestRequestConnectionFailureIsTransportError(t *testing.T) {
	c := New(50 * time.Millisecond)
	_, err := c.Request(context.Background(), http.MethodGet, "http://127.0.0.1:1", nil, nil)
	if err == nil {
		t.Fatal("Request() to a closed port should error")
	}
	if !apperr.Is(err, apperr.KindTransport) {
		t.Errorf("KindOf(err) = %v, want KindTransport", apperr.KindOf(err))
	}
}
