package ports

import (
	"context"
	"io"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

// PolicyRepository persists and reads policy record state.
type PolicyRepository interface {
	Upsert(ctx context.Context, rec *domain.PolicyRecord) error
	GetByID(ctx context.Context, id string) (*domain.PolicyRecord, error)
	ListIDs(ctx context.Context) ([]string, error)
	UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMessage string) error
}

// SnapshotStorage stores raw crawl output for traceability.
type SnapshotStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes index events.
type MessageQueue interface {
	PublishPolicyCollected(ctx context.Context, policyID string) error
	SubscribePolicyCollected(ctx context.Context, handler func(context.Context, string) error) error
}

// PolicyCrawler fetches policy listings and detail pages from the source site.
type PolicyCrawler interface {
	ListPolicyIDs(ctx context.Context, categoryCode string, page int) ([]string, error)
	FetchPolicy(ctx context.Context, policyID, category string) (*domain.PolicyRecord, error)
}

// Embedder builds vectors for chunks and query text. Build and query must use
// the same model; the usecases verify the dimension on both paths.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits record text into embeddable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes chunks and performs semantic search. Chunk keys are
// derived from (policy id, chunk index), so re-indexing the same record
// overwrites instead of duplicating.
type VectorStore interface {
	IndexChunks(ctx context.Context, rec *domain.PolicyRecord, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// AnswerGenerator creates the final user-facing answer from retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
	GenerateWebAnswer(ctx context.Context, question string, results []domain.WebResult) (string, error)
}

// WebSearcher queries a public search engine. Best effort; zero results is a
// valid outcome, not an error.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}
