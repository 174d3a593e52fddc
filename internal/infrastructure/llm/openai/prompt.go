package openai

import (
	"fmt"
	"strings"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

const answerSystemPrompt = "당신은 서울시 청년 정책 전문 상담사입니다. 제공된 정책 정보만 근거로 답변하세요."

const webSystemPrompt = "당신은 서울시 청년 정책 전문가입니다. 제공된 웹 검색 결과만 근거로 답변하세요."

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] 정책: %s (분야: %s, 유사도: %.3f)\nURL: %s\n%s\n\n",
			idx+1,
			chunk.Title,
			chunk.Category,
			chunk.Score,
			chunk.URL,
			chunk.Text,
		))
	}

	return fmt.Sprintf(`아래 정책 정보만 근거로 질문에 답변하세요.
각 주장 뒤에 근거가 된 정보의 번호를 [1] 형식으로 표기하세요.
정보가 부족하면 부족하다고 직접 말하세요.

질문:
%s

정책 정보:
%s`, question, contextBuilder.String())
}

func buildWebAnswerPrompt(question string, results []domain.WebResult) string {
	var contextBuilder strings.Builder
	for idx, r := range results {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] %s\nURL: %s\n%s\n\n",
			idx+1,
			r.Title,
			r.URL,
			r.Snippet,
		))
	}

	return fmt.Sprintf(`아래 웹 검색 결과만 근거로 질문에 답변하세요.
각 주장 뒤에 근거가 된 결과의 번호를 [1] 형식으로 표기하세요.
검색 결과로 확인되지 않는 내용은 추측하지 말고 확인이 필요하다고 말하세요.

질문:
%s

웹 검색 결과:
%s`, question, contextBuilder.String())
}
