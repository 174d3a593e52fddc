package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
)

// IndexUseCase turns a stored policy record into searchable vectors. Status
// moves collected -> indexing -> indexed, or index_failed with the error
// message kept on the record.
type IndexUseCase struct {
	repo        ports.PolicyRepository
	chunker     ports.Chunker
	embedder    ports.Embedder
	vectorDB    ports.VectorStore
	expectedDim int
	logger      *slog.Logger
}

func NewIndexUseCase(
	repo ports.PolicyRepository,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	expectedDim int,
	logger *slog.Logger,
) *IndexUseCase {
	return &IndexUseCase{
		repo:        repo,
		chunker:     chunker,
		embedder:    embedder,
		vectorDB:    vectorDB,
		expectedDim: expectedDim,
		logger:      logger,
	}
}

func (uc *IndexUseCase) IndexByID(ctx context.Context, policyID string) error {
	rec, err := uc.repo.GetByID(ctx, policyID)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	if err := uc.repo.UpdateIndexStatus(ctx, rec.ID, domain.StatusIndexing, ""); err != nil {
		return fmt.Errorf("mark indexing: %w", err)
	}

	if err := uc.index(ctx, rec); err != nil {
		if statusErr := uc.repo.UpdateIndexStatus(ctx, rec.ID, domain.StatusIndexFailed, err.Error()); statusErr != nil {
			uc.logger.Error("mark index_failed failed", "policy_id", rec.ID, "error", statusErr)
		}
		return fmt.Errorf("index policy %s: %w", rec.ID, err)
	}

	if err := uc.repo.UpdateIndexStatus(ctx, rec.ID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}

	uc.logger.Info("policy indexed", "policy_id", rec.ID)
	return nil
}

func (uc *IndexUseCase) index(ctx context.Context, rec *domain.PolicyRecord) error {
	chunks := uc.chunker.Split(rec.EmbeddingText())
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk policy", fmt.Errorf("no text to index for %s", rec.ID))
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	// A dimension mismatch means the configured model and collection have
	// diverged. Indexing would poison search, so fail hard.
	for i, v := range vectors {
		if uc.expectedDim > 0 && len(v) != uc.expectedDim {
			return domain.WrapError(domain.ErrConfiguration, "verify embedding dimension",
				fmt.Errorf("chunk %d has dimension %d, expected %d", i, len(v), uc.expectedDim))
		}
	}

	if err := uc.vectorDB.IndexChunks(ctx, rec, chunks, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// ReindexAll rebuilds the index for every stored policy. One bad record does
// not stop the sweep; failures are logged and counted out.
func (uc *IndexUseCase) ReindexAll(ctx context.Context) (int, error) {
	ids, err := uc.repo.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list policies: %w", err)
	}

	indexed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return indexed, ctx.Err()
		}
		if err := uc.IndexByID(ctx, id); err != nil {
			// Configuration errors will fail every record the same way.
			if domain.IsKind(err, domain.ErrConfiguration) {
				return indexed, err
			}
			uc.logger.Error("reindex skipped record", "policy_id", id, "error", err)
			continue
		}
		indexed++
	}

	uc.logger.Info("reindex complete", "indexed", indexed, "total", len(ids))
	return indexed, nil
}
