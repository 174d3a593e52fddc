package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/youthdesk/policy-rag/internal/config"
	"github.com/youthdesk/policy-rag/internal/core/ports"
	"github.com/youthdesk/policy-rag/internal/core/usecase"
	"github.com/youthdesk/policy-rag/internal/infrastructure/chunking"
	"github.com/youthdesk/policy-rag/internal/infrastructure/crawler/seoul"
	"github.com/youthdesk/policy-rag/internal/infrastructure/llm/openai"
	"github.com/youthdesk/policy-rag/internal/infrastructure/queue/nats"
	"github.com/youthdesk/policy-rag/internal/infrastructure/repository/postgres"
	"github.com/youthdesk/policy-rag/internal/infrastructure/resilience"
	"github.com/youthdesk/policy-rag/internal/infrastructure/search/duckduckgo"
	"github.com/youthdesk/policy-rag/internal/infrastructure/storage/localfs"
	"github.com/youthdesk/policy-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue   ports.MessageQueue
	Repo    ports.PolicyRepository
	Crawler ports.PolicyCrawler

	AskUC     ports.QuestionAnswerer
	Retriever ports.PolicyRetriever
	IngestUC  ports.PolicyIngestor
	IndexUC   ports.PolicyIndexer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewPolicyRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("init snapshot storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient, err := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.Options{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Executor:    executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	embedder := openai.NewEmbedder(llmClient)
	generator := openai.NewGenerator(llmClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	searcher := duckduckgo.NewWithOptions(cfg.WebSearchBaseURL+"/html/", cfg.WebSearchQuerySuffix, duckduckgo.Options{
		ResilienceExecutor: executor,
	})
	webUC := usecase.NewWebSearchUseCase(searcher, generator, cfg.WebSearchMaxResults, logger)

	askUC := usecase.NewAskUseCase(
		embedder,
		vectorDB,
		generator,
		webUC,
		cfg.RAGTopK,
		cfg.RAGMinScore,
		cfg.RAGFallbackMode == config.FallbackWebSearch,
		logger,
	)

	ingestUC := usecase.NewIngestUseCase(repo, storage, queue, logger)
	indexUC := usecase.NewIndexUseCase(repo, chunker, embedder, vectorDB, cfg.EmbeddingDim, logger)

	crawlerClient := seoul.New(cfg.CrawlerBaseURL, cfg.CrawlerRPS)

	return &App{
		Config:  cfg,
		Queue:   queue,
		Repo:    repo,
		Crawler: crawlerClient,

		AskUC:     askUC,
		Retriever: askUC,
		IngestUC:  ingestUC,
		IndexUC:   indexUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
