package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := Do(context.Background(), server.Client(), NewBreaker("test"), fastBackoff(),
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, server.URL, nil)
		})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := Do(context.Background(), server.Client(), NewBreaker("test"), fastBackoff(),
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, server.URL, nil)
		})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Do(context.Background(), server.Client(), NewBreaker("test"), fastBackoff(),
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, server.URL, nil)
		})
	if err == nil {
		t.Fatal("Do should fail on 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastBackoff()
	_, err := Do(context.Background(), server.Client(), NewBreaker("test"), cfg,
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, server.URL, nil)
		})
	if err == nil {
		t.Fatal("Do should fail after exhausting retries")
	}
	want := int32(cfg.MaxRetries + 1)
	if got := calls.Load(); got != want {
		t.Errorf("attempts = %d, want %d", got, want)
	}
}

func TestDo_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, server.Client(), NewBreaker("test"), fastBackoff(),
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, server.URL, nil)
		})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
