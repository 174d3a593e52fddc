package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
)

// IngestUseCase stores a crawled record and schedules it for indexing. The
// raw record is snapshotted to storage first so a later reindex can replay
// the crawl output without touching the source site.
type IngestUseCase struct {
	repo    ports.PolicyRepository
	storage ports.SnapshotStorage
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewIngestUseCase(repo ports.PolicyRepository, storage ports.SnapshotStorage, queue ports.MessageQueue, logger *slog.Logger) *IngestUseCase {
	return &IngestUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, record *domain.PolicyRecord) error {
	if record == nil {
		return domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("nil record"))
	}
	if err := record.Validate(); err != nil {
		return err
	}

	snapshot, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := uc.storage.Save(ctx, record.ID+".json", bytes.NewReader(snapshot)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := uc.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("store policy: %w", err)
	}

	if err := uc.queue.PublishPolicyCollected(ctx, record.ID); err != nil {
		// The record is persisted; a reindex run will pick it up even if
		// the publish is lost.
		uc.logger.Error("publish collected event failed", "policy_id", record.ID, "error", err)
		return fmt.Errorf("publish collected event: %w", err)
	}

	uc.logger.Info("policy ingested", "policy_id", record.ID, "category", record.Category)
	return nil
}

// ReplaySnapshot restores a policy from its crawl snapshot: the record is
// upserted again and re-announced to the indexer. This recovers a lost
// publish or a wiped database row without touching the source site.
func (uc *IngestUseCase) ReplaySnapshot(ctx context.Context, policyID string) error {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "replay snapshot", fmt.Errorf("empty policy id"))
	}

	rc, err := uc.storage.Open(ctx, policyID+".json")
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer rc.Close()

	var record domain.PolicyRecord
	if err := json.NewDecoder(rc).Decode(&record); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if err := uc.repo.Upsert(ctx, &record); err != nil {
		return fmt.Errorf("store policy: %w", err)
	}
	if err := uc.queue.PublishPolicyCollected(ctx, record.ID); err != nil {
		return fmt.Errorf("publish collected event: %w", err)
	}

	uc.logger.Info("policy replayed from snapshot", "policy_id", record.ID)
	return nil
}
