package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/infrastructure/resilience"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// Client scrapes the DuckDuckGo HTML endpoint. It is the fallback path when
// the vector store has nothing relevant, so failures here degrade the answer
// but never break the request.
type Client struct {
	endpoint    string
	querySuffix string
	httpClient  *http.Client
	executor    *resilience.Executor
}

// New builds a search client. querySuffix is appended to every query to keep
// results on topic (e.g. "서울 청년 정책").
func New(endpoint, querySuffix string) *Client {
	return NewWithOptions(endpoint, querySuffix, Options{})
}

type Options struct {
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(endpoint, querySuffix string, options Options) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint:    endpoint,
		querySuffix: querySuffix,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		executor:    options.ResilienceExecutor,
	}
}

// Search retries transient engine failures through the executor when one is
// configured.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		maxResults = 3
	}
	if c.querySuffix != "" {
		query = query + " " + c.querySuffix
	}

	var results []domain.WebResult
	do := func(callCtx context.Context) error {
		var err error
		results, err = c.search(callCtx, query, maxResults)
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "websearch.search", do, classifySearchError)
	} else {
		err = do(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; policy-rag/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &statusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	var results []domain.WebResult
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())
		target := unwrapRedirect(href)
		if title == "" || target == "" {
			return true
		}

		results = append(results, domain.WebResult{
			Title:   title,
			URL:     target,
			Snippet: snippet,
		})
		return len(results) < maxResults
	})

	return results, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=... redirect links to the
// real destination URL.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
