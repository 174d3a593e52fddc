package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
)

const (
	noPolicyAnswer    = "관련된 서울시 청년 정책을 찾을 수 없습니다. 질문을 조금 더 구체적으로 작성해 주세요."
	unavailableAnswer = "일시적인 오류로 답변을 생성하지 못했습니다. 잠시 후 다시 시도해 주세요."
)

// AskUseCase runs the retrieval pipeline: embed the question, search the
// vector store, generate a cited answer. Questions that retrieval cannot
// serve fall through to web search or a not-found answer depending on
// fallbackToWeb.
type AskUseCase struct {
	embedder      ports.Embedder
	vectorDB      ports.VectorStore
	generator     ports.AnswerGenerator
	webAnswerer   ports.WebAnswerer
	defaultTopK   int
	minScore      float64
	fallbackToWeb bool
	logger        *slog.Logger
}

func NewAskUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	webAnswerer ports.WebAnswerer,
	defaultTopK int,
	minScore float64,
	fallbackToWeb bool,
	logger *slog.Logger,
) *AskUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &AskUseCase{
		embedder:      embedder,
		vectorDB:      vectorDB,
		generator:     generator,
		webAnswerer:   webAnswerer,
		defaultTopK:   defaultTopK,
		minScore:      minScore,
		fallbackToWeb: fallbackToWeb,
		logger:        logger,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, question string, opts ports.AskOptions) (*domain.AnswerPacket, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("empty question"))
	}

	if opts.Mode == domain.ModeWebSearch {
		if uc.webAnswerer == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "ask", errors.New("web search mode is not configured"))
		}
		return uc.webAnswerer.SearchAndAnswer(ctx, question)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = uc.defaultTopK
	}

	state := domain.StateRetrieving
	chunks, err := uc.retrieve(ctx, question, topK, domain.SearchFilter{Category: opts.Category})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		uc.logger.Error("retrieval failed", "state", state, "error", err)
		return failedPacket(domain.ModePolicy), nil
	}

	if len(chunks) == 0 {
		state = domain.StateRetrievalEmpty
		if uc.fallbackToWeb && uc.webAnswerer != nil {
			uc.logger.Info("no relevant chunks, falling back to web search", "question_len", len(question))
			return uc.webAnswerer.SearchAndAnswer(ctx, question)
		}
		return &domain.AnswerPacket{
			Answer:  noPolicyAnswer,
			Mode:    domain.ModePolicy,
			State:   state,
			Sources: []domain.Source{},
		}, nil
	}

	state = domain.StateGenerating
	answer, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		uc.logger.Error("generation failed", "state", state, "chunks", len(chunks), "error", err)
		return failedPacket(domain.ModePolicy), nil
	}

	sources, chunkToSource := toSources(chunks)
	return &domain.AnswerPacket{
		Answer:   remapCitations(answer, chunkToSource),
		Mode:     domain.ModePolicy,
		State:    domain.StateAnswered,
		Sources:  sources,
		TopScore: chunks[0].Score,
	}, nil
}

// Retrieve exposes ranked retrieval without answer generation. The query is
// embedded as the literal string, blank included; an empty result set is the
// caller's signal, never an error.
func (uc *AskUseCase) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	return uc.retrieve(ctx, query, topK, filter)
}

func (uc *AskUseCase) retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so the score threshold does not shrink an already small
	// result set below topK.
	chunks, err := uc.vectorDB.Search(ctx, queryVector, topK*2, filter)
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}

	kept := chunks[:0]
	for _, ch := range chunks {
		if ch.Score >= uc.minScore {
			kept = append(kept, ch)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept, nil
}

// toSources collapses chunks to one source per policy, keeping the best score.
// Order follows the first (highest ranked) chunk of each policy. The second
// return value maps each context block number (one per chunk, 1-based) to its
// deduped source number, for rewriting citation markers.
func toSources(chunks []domain.RetrievedChunk) ([]domain.Source, []int) {
	index := make(map[string]int)
	sources := make([]domain.Source, 0, len(chunks))
	chunkToSource := make([]int, len(chunks))
	for i, ch := range chunks {
		if j, ok := index[ch.PolicyID]; ok {
			if ch.Score > sources[j].Score {
				sources[j].Score = ch.Score
			}
			chunkToSource[i] = j + 1
			continue
		}
		index[ch.PolicyID] = len(sources)
		chunkToSource[i] = len(sources) + 1
		sources = append(sources, domain.Source{
			PolicyID: ch.PolicyID,
			Title:    ch.Title,
			URL:      ch.URL,
			Score:    ch.Score,
		})
	}
	return sources, chunkToSource
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// remapCitations rewrites context-block markers onto the deduped source list.
// The prompt numbers one block per retrieved chunk, so after dedup a citation
// like [3] may point at the second chunk of source 1 and becomes [1]. Markers
// past the context that was actually sent are dropped.
func remapCitations(answer string, chunkToSource []int) string {
	return citationPattern.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(citationPattern.FindStringSubmatch(marker)[1])
		if err != nil || n < 1 || n > len(chunkToSource) {
			return ""
		}
		return "[" + strconv.Itoa(chunkToSource[n-1]) + "]"
	})
}

// sanitizeCitations strips citation markers that point past the source list.
// Models occasionally invent [4] with three sources; the marker is dropped
// rather than failing the answer.
func sanitizeCitations(answer string, sourceCount int) string {
	return citationPattern.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(citationPattern.FindStringSubmatch(marker)[1])
		if err != nil || n < 1 || n > sourceCount {
			return ""
		}
		return marker
	})
}

func failedPacket(mode domain.AnswerMode) *domain.AnswerPacket {
	return &domain.AnswerPacket{
		Answer:  unavailableAnswer,
		Mode:    mode,
		State:   domain.StateGenerationFailed,
		Sources: []domain.Source{},
	}
}
