package ports

import (
	"context"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

// AskOptions selects the pipeline path and retrieval scope for one question.
type AskOptions struct {
	Mode     domain.AnswerMode
	TopK     int
	Category string
}

// QuestionAnswerer is the single pipeline entry point for the presentation
// layer. Pipeline-level failures come back inside the AnswerPacket; the error
// return is reserved for invalid input and context cancellation.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string, opts AskOptions) (*domain.AnswerPacket, error)
}

// WebAnswerer answers a question from live web search results instead of the
// vector store.
type WebAnswerer interface {
	SearchAndAnswer(ctx context.Context, question string) (*domain.AnswerPacket, error)
}

// PolicyRetriever exposes raw retrieval without generation.
type PolicyRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// PolicyIngestor stores one crawled policy record and schedules it for
// indexing. ReplaySnapshot restores a record from its crawl snapshot without
// re-hitting the source site.
type PolicyIngestor interface {
	Ingest(ctx context.Context, record *domain.PolicyRecord) error
	ReplaySnapshot(ctx context.Context, policyID string) error
}

// PolicyIndexer is the inbound contract for asynchronous index building.
type PolicyIndexer interface {
	IndexByID(ctx context.Context, policyID string) error
	ReindexAll(ctx context.Context) (int, error)
}

// PolicyReader is the inbound read model for policy metadata.
type PolicyReader interface {
	GetByID(ctx context.Context, id string) (*domain.PolicyRecord, error)
}
