package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/apierr"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

func newTestClient(t *testing.T, url string) GenerationClient {
	t.Helper()
	t.Setenv("GENERATION_API_KEY", "test-key")
	t.Setenv("GENERATION_API_URL", url)
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "5")
	t.Setenv("GENERATION_MAX_RETRIES", "2")
	client, err := NewGenerationClient(testLogger(t))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","content":"hello","viral_score":80}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Generate(context.Background(), uuid.New(), "", types.GenerationParams{Topic: "x"})
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if resp.Content != "hello" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly one retry, got %d calls, resp %+v", calls, resp)
	}
}

func TestGenerateDoesNotRetryCreditRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient_credits"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), uuid.New(), "", types.GenerationParams{Topic: "x"})
	if !apierr.IsInsufficientCredits(err) {
		t.Fatalf("expected insufficient_credits, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("credit rejections must not be retried, got %d calls", calls)
	}
}

func TestGenerateDoesNotRetryRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), uuid.New(), "", types.GenerationParams{Topic: "x"})
	if !apierr.IsRateLimit(err) {
		t.Fatalf("expected rate_limit, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("rate limits must not be retried, got %d calls", calls)
	}
}

func TestGenerateRejectsEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","content":"  ","viral_score":10}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), uuid.New(), "", types.GenerationParams{Topic: "x"})
	if apierr.Code(err) != apierr.CodeGenerationFailed {
		t.Fatalf("expected generation_failed for empty content, got %v", err)
	}
}

func TestCategorizeGenerationError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"status 402", &generationHTTPError{StatusCode: 402, Body: "no credits left"}, apierr.CodeInsufficientCredits},
		{"body marker", &generationHTTPError{StatusCode: 400, Body: `{"code":"insufficient_credits"}`}, apierr.CodeInsufficientCredits},
		{"status 429", &generationHTTPError{StatusCode: 429, Body: "slow down"}, apierr.CodeRateLimit},
		{"plain 500", &generationHTTPError{StatusCode: 500, Body: "boom"}, apierr.CodeGenerationFailed},
		{"non-http", errors.New("dial tcp refused"), apierr.CodeGenerationFailed},
	}
	for _, tc := range cases {
		if got := apierr.Code(categorizeGenerationError(tc.err)); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestLoadGenerationDefaultsBuiltin(t *testing.T) {
	defaults, err := LoadGenerationDefaults("")
	if err != nil {
		t.Fatalf("builtin defaults must load: %v", err)
	}
	if len(defaults.Topics) == 0 || len(defaults.Frameworks) == 0 {
		t.Fatalf("builtin defaults must be non-empty: %+v", defaults)
	}
}
