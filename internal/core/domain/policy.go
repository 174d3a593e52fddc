package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type IndexStatus string

const (
	StatusCollected   IndexStatus = "collected"
	StatusIndexing    IndexStatus = "indexing"
	StatusIndexed     IndexStatus = "indexed"
	StatusIndexFailed IndexStatus = "index_failed"
)

// PolicyRecord is one crawled policy entry from youth.seoul.go.kr.
// Content fields are written once by the crawler; only the index status
// mutates afterwards.
type PolicyRecord struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Category        string      `json:"category,omitempty"`
	Target          string      `json:"target,omitempty"`
	Body            string      `json:"body"`
	URL             string      `json:"url"`
	Agency          string      `json:"agency,omitempty"`
	ApplyStart      string      `json:"apply_start,omitempty"`
	ApplyEnd        string      `json:"apply_end,omitempty"`
	SupportScale    string      `json:"support_scale,omitempty"`
	ApplicationSite string      `json:"application_site,omitempty"`
	CollectedAt     time.Time   `json:"collected_at"`
	IndexStatus     IndexStatus `json:"index_status"`
	IndexError      string      `json:"index_error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Validate rejects malformed crawl output at the ingestion boundary.
func (p *PolicyRecord) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return WrapError(ErrInvalidInput, "validate policy", errors.New("missing id"))
	}
	if strings.TrimSpace(p.Title) == "" {
		return WrapError(ErrInvalidInput, "validate policy", fmt.Errorf("missing title for %s", p.ID))
	}
	if strings.TrimSpace(p.URL) == "" {
		return WrapError(ErrInvalidInput, "validate policy", fmt.Errorf("missing url for %s", p.ID))
	}
	return nil
}

// EmbeddingText builds the text that gets embedded for this record.
func (p *PolicyRecord) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("제목: ")
	b.WriteString(p.Title)
	if p.Category != "" {
		b.WriteString("\n분야: ")
		b.WriteString(p.Category)
	}
	if p.Target != "" {
		b.WriteString("\n지원대상: ")
		b.WriteString(p.Target)
	}
	if p.Body != "" {
		b.WriteString("\n내용: ")
		b.WriteString(p.Body)
	}
	return b.String()
}
