package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/infrastructure/resilience"
)

const resultsHTML = `
<html><body>
<div class="result">
	<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fyouth.seoul.go.kr%2Fp%2F1&rut=abc">청년 월세 지원 안내</a>
	<a class="result__snippet">서울시 청년 월세 지원 사업 신청 방법 안내.</a>
</div>
<div class="result">
	<a class="result__a" href="https://news.example.com/article">청년수당 확대</a>
	<a class="result__snippet">서울시가 청년수당을 확대한다.</a>
</div>
<div class="result">
	<a class="result__a" href="https://extra.example.com">세 번째 결과</a>
</div>
</body></html>`

func TestSearchAppendsSuffixAndUnwrapsRedirects(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotQuery = r.PostForm.Get("q")
		w.Write([]byte(resultsHTML))
	}))
	defer srv.Close()

	client := New(srv.URL, "서울 청년 정책")
	results, err := client.Search(context.Background(), "월세 지원", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotQuery != "월세 지원 서울 청년 정책" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(results) != 2 {
		t.Fatalf("expected maxResults=2 to cap results, got %d", len(results))
	}
	if results[0].URL != "https://youth.seoul.go.kr/p/1" {
		t.Fatalf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[0].Title != "청년 월세 지원 안내" || results[0].Snippet == "" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].URL != "https://news.example.com/article" {
		t.Fatalf("plain link mangled: %q", results[1].URL)
	}
}

func TestSearchReturnsEmptyOnNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><div class='no-results'>결과 없음</div></body></html>"))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	results, err := client.Search(context.Background(), "존재하지 않는 검색어", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestSearchErrorsOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	_, err := client.Search(context.Background(), "월세", 3)
	if err == nil {
		t.Fatal("expected error for 429")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("throttling must classify as temporary, got %v", err)
	}
}

func TestSearchRetriesTransientFailuresThenSucceeds(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(resultsHTML))
	}))
	defer srv.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	client := NewWithOptions(srv.URL, "", Options{ResilienceExecutor: executor})

	results, err := client.Search(context.Background(), "월세", 2)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	client := NewWithOptions(srv.URL, "", Options{ResilienceExecutor: executor})

	if _, err := client.Search(context.Background(), "월세", 2); err == nil {
		t.Fatal("expected error for 403")
	}
	if attempts != 1 {
		t.Fatalf("403 must not retry, attempts = %d", attempts)
	}
}
