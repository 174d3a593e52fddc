package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/core/ports"
	"github.com/youthdesk/policy-rag/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	answerer  ports.QuestionAnswerer
	retriever ports.PolicyRetriever
	reader    ports.PolicyReader
	metrics   *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	answerer ports.QuestionAnswerer,
	retriever ports.PolicyRetriever,
	reader ports.PolicyReader,
	serverMetrics *metrics.HTTPServerMetrics,
	opts RouterOptions,
) *Router {
	return &Router{
		answerer:       answerer,
		retriever:      retriever,
		reader:         reader,
		metrics:        serverMetrics,
		rateLimitRPS:   opts.RateLimitRPS,
		rateLimitBurst: opts.RateLimitBurst,
		maxInFlight:    opts.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/policies/", rt.getPolicyByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		Mode     string `json:"mode"`
		TopK     int    `json:"top_k"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	mode, ok := parseMode(req.Mode)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be 'policy' or 'websearch'"})
		return
	}

	start := time.Now()
	packet, err := rt.answerer.Ask(r.Context(), req.Question, ports.AskOptions{
		Mode:     mode,
		TopK:     req.TopK,
		Category: req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "/v1/ask", len(packet.Sources), time.Since(start))
		rt.metrics.RecordRAGModeRequest(serviceName, "/v1/ask", string(packet.Mode))
	}
	writeJSON(w, http.StatusOK, packet)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query    string `json:"query"`
		TopK     int    `json:"top_k"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	// Blank queries are embedded as the literal string and simply return
	// whatever ranks; only /v1/ask insists on a question.
	chunks, err := rt.retriever.Retrieve(r.Context(), req.Query, req.TopK, domain.SearchFilter{
		Category: req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": chunks})
}

func (rt *Router) getPolicyByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/policies/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy id is required"})
		return
	}

	rec, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func parseMode(raw string) (domain.AnswerMode, bool) {
	switch raw {
	case "", string(domain.ModePolicy):
		return domain.ModePolicy, true
	case string(domain.ModeWebSearch):
		return domain.ModeWebSearch, true
	default:
		return "", false
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
