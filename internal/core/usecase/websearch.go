package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
)

const noWebResultsAnswer = "웹 검색에서도 관련 정보를 찾지 못했습니다. 다른 검색어로 다시 시도해 주세요."

// WebSearchUseCase answers a question from live search results when the
// policy index has nothing relevant.
type WebSearchUseCase struct {
	searcher   ports.WebSearcher
	generator  ports.AnswerGenerator
	maxResults int
	logger     *slog.Logger
}

func NewWebSearchUseCase(searcher ports.WebSearcher, generator ports.AnswerGenerator, maxResults int, logger *slog.Logger) *WebSearchUseCase {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &WebSearchUseCase{
		searcher:   searcher,
		generator:  generator,
		maxResults: maxResults,
		logger:     logger,
	}
}

func (uc *WebSearchUseCase) SearchAndAnswer(ctx context.Context, question string) (*domain.AnswerPacket, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "web search", errors.New("empty question"))
	}

	results, err := uc.searcher.Search(ctx, question, uc.maxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		uc.logger.Error("web search failed", "error", err)
		return failedPacket(domain.ModeWebSearch), nil
	}

	if len(results) == 0 {
		return &domain.AnswerPacket{
			Answer:  noWebResultsAnswer,
			Mode:    domain.ModeWebSearch,
			State:   domain.StateRetrievalEmpty,
			Sources: []domain.Source{},
		}, nil
	}

	answer, err := uc.generator.GenerateWebAnswer(ctx, question, results)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		uc.logger.Error("web answer generation failed", "results", len(results), "error", err)
		return failedPacket(domain.ModeWebSearch), nil
	}

	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, domain.Source{
			Title: r.Title,
			URL:   r.URL,
		})
	}

	return &domain.AnswerPacket{
		Answer:  sanitizeCitations(answer, len(sources)),
		Mode:    domain.ModeWebSearch,
		State:   domain.StateAnswered,
		Sources: sources,
	}, nil
}
