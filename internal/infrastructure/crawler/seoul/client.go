package seoul

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

const userAgent = "Mozilla/5.0 (compatible; policy-rag-crawler/1.0)"

// Client crawls the Seoul youth portal. Every request goes through a shared
// rate limiter so full category sweeps stay polite to the source site.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(baseURL string, requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// ListPolicyIDs returns the policy ids found on one listing page of a
// category. An empty slice on a valid page means the category is exhausted.
func (c *Client) ListPolicyIDs(ctx context.Context, categoryCode string, page int) ([]string, error) {
	q := url.Values{}
	q.Set("sc_plcyFldCd", categoryCode)
	q.Set("pageIndex", strconv.Itoa(page))

	body, err := c.get(ctx, c.baseURL+"/youth/infoData/sprtInfo/list.do?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	return extractPolicyIDs(doc), nil
}

// FetchPolicy downloads and parses one policy detail page.
func (c *Client) FetchPolicy(ctx context.Context, policyID, category string) (*domain.PolicyRecord, error) {
	q := url.Values{}
	q.Set("plcyBizId", policyID)
	detailURL := c.baseURL + "/youth/infoData/sprtInfo/view.do?" + q.Encode()

	body, err := c.get(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("fetch policy %s: %w", policyID, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", policyID, err)
	}

	rec := parsePolicyDetail(doc, policyID, detailURL)
	rec.Category = category
	now := time.Now().UTC()
	rec.CollectedAt = now
	rec.IndexStatus = domain.StatusCollected
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("http get status: %s", resp.Status)
	}
	return resp.Body, nil
}
