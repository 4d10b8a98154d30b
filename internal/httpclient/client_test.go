package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	_, err := Do(New(time.Second), req)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err=%v want APIError 403", err)
	}
	if apiErr.Temporary() {
		t.Fatalf("403 should not be temporary")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var states []int
	b := NewBreaker("test", 2, time.Minute, nil, func(name string, state int) { states = append(states, state) })
	fail := func() ([]byte, error) { return nil, &APIError{Status: 503} }
	for i := 0; i < 2; i++ {
		if _, err := b.Execute(fail); err == nil {
			t.Fatalf("want error")
		}
	}
	calls := 0
	_, err := b.Execute(func() ([]byte, error) { calls++; return []byte("ok"), nil })
	if !errors.Is(err, ErrBreakerOpen) || calls != 0 {
		t.Fatalf("err=%v calls=%d want open breaker", err, calls)
	}
	if len(states) != 1 || states[0] != 2 {
		t.Fatalf("states=%v want [2]", states)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	b := NewBreaker("test", 1, time.Minute, nil, nil)
	for i := 0; i < 3; i++ {
		_, _ = b.Execute(func() ([]byte, error) { return nil, &APIError{Status: 404} })
	}
	body, err := b.Execute(func() ([]byte, error) { return []byte("ok"), nil })
	if err != nil || string(body) != "ok" {
		t.Fatalf("body=%q err=%v", body, err)
	}
}
