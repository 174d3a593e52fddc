package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
	"github.com/youthdesk/policy-rag/internal/observability/metrics"
)

type fakeAnswerer struct {
	packet  *domain.AnswerPacket
	err     error
	gotOpts ports.AskOptions
}

func (f *fakeAnswerer) Ask(_ context.Context, _ string, opts ports.AskOptions) (*domain.AnswerPacket, error) {
	f.gotOpts = opts
	return f.packet, f.err
}

type fakeRetriever struct {
	chunks   []domain.RetrievedChunk
	err      error
	gotQuery string
	calls    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ int, _ domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	f.gotQuery = query
	f.calls++
	return f.chunks, f.err
}

type fakeReader struct {
	rec *domain.PolicyRecord
	err error
}

func (f *fakeReader) GetByID(_ context.Context, _ string) (*domain.PolicyRecord, error) {
	return f.rec, f.err
}

func answeredPacket() *domain.AnswerPacket {
	return &domain.AnswerPacket{
		Answer: "청년 월세 지원은 [1]을 참고하세요.",
		Mode:   domain.ModePolicy,
		State:  domain.StateAnswered,
		Sources: []domain.Source{
			{PolicyID: "P1", Title: "청년 월세 지원", URL: "https://youth.seoul.go.kr/p/1", Score: 0.9},
		},
		TopScore: 0.9,
	}
}

func newTestRouter(answerer ports.QuestionAnswerer, retriever ports.PolicyRetriever, reader ports.PolicyReader) http.Handler {
	return NewRouter(answerer, retriever, reader, metrics.NewHTTPServerMetrics("api-test"), RouterOptions{}).Handler()
}

func TestAskReturnsPacket(t *testing.T) {
	answerer := &fakeAnswerer{packet: answeredPacket()}
	handler := newTestRouter(answerer, &fakeRetriever{}, &fakeReader{})

	body := `{"question":"월세 지원 알려줘","top_k":3,"category":"주거"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}
	if answerer.gotOpts.TopK != 3 || answerer.gotOpts.Category != "주거" {
		t.Fatalf("options not forwarded: %+v", answerer.gotOpts)
	}
	if answerer.gotOpts.Mode != domain.ModePolicy {
		t.Fatalf("default mode = %s", answerer.gotOpts.Mode)
	}

	var packet domain.AnswerPacket
	if err := json.Unmarshal(res.Body.Bytes(), &packet); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if packet.State != domain.StateAnswered || len(packet.Sources) != 1 {
		t.Fatalf("unexpected packet: %+v", packet)
	}
}

func TestAskRejectsUnknownMode(t *testing.T) {
	handler := newTestRouter(&fakeAnswerer{packet: answeredPacket()}, &fakeRetriever{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"질문","mode":"telepathy"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestAskRejectsMissingQuestion(t *testing.T) {
	handler := newTestRouter(&fakeAnswerer{packet: answeredPacket()}, &fakeRetriever{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestAskMapsInvalidInputTo400(t *testing.T) {
	answerer := &fakeAnswerer{err: domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("bad"))}
	handler := newTestRouter(answerer, &fakeRetriever{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"질문"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestSearchReturnsChunks(t *testing.T) {
	retriever := &fakeRetriever{chunks: []domain.RetrievedChunk{
		{PolicyID: "P1", Title: "청년 월세 지원", Score: 0.8},
	}}
	handler := newTestRouter(&fakeAnswerer{}, retriever, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"월세"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if retriever.gotQuery != "월세" {
		t.Fatalf("query = %q", retriever.gotQuery)
	}
	var resp struct {
		Results []domain.RetrievedChunk `json:"results"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].PolicyID != "P1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestSearchAcceptsEmptyQuery(t *testing.T) {
	retriever := &fakeRetriever{}
	handler := newTestRouter(&fakeAnswerer{}, retriever, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":""}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("empty query must still retrieve, status = %d", res.Code)
	}
	if retriever.calls != 1 {
		t.Fatalf("retriever calls = %d", retriever.calls)
	}
}

func TestGetPolicyByIDMapsNotFoundTo404(t *testing.T) {
	reader := &fakeReader{err: domain.WrapError(domain.ErrPolicyNotFound, "policy missing", errors.New("no rows"))}
	handler := newTestRouter(&fakeAnswerer{}, &fakeRetriever{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestGetPolicyByIDReturnsRecord(t *testing.T) {
	reader := &fakeReader{rec: &domain.PolicyRecord{ID: "P1", Title: "청년수당", URL: "https://youth.seoul.go.kr/p/2"}}
	handler := newTestRouter(&fakeAnswerer{}, &fakeRetriever{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/P1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var rec domain.PolicyRecord
	if err := json.Unmarshal(res.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.ID != "P1" || rec.Title != "청년수당" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestTemporaryErrorMapsTo503(t *testing.T) {
	answerer := &fakeAnswerer{err: domain.WrapError(domain.ErrTemporary, "ask", errors.New("llm down"))}
	handler := newTestRouter(answerer, &fakeRetriever{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"질문"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestRouter(&fakeAnswerer{}, &fakeRetriever{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}
}
