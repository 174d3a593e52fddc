package domain

type SearchFilter struct {
	Category string
}

type RetrievedChunk struct {
	PolicyID   string  `json:"policy_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	URL        string  `json:"url"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Source identifies a policy cited by an answer.
type Source struct {
	PolicyID string  `json:"policy_id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Score    float64 `json:"score,omitempty"`
}

// WebResult is one web search hit used as generation context in websearch mode.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type AnswerMode string

const (
	ModePolicy    AnswerMode = "policy"
	ModeWebSearch AnswerMode = "websearch"
)

// QueryState tracks a question through the pipeline. Terminal states are
// StateAnswered, StateRetrievalEmpty (when no fallback produced an answer)
// and StateGenerationFailed.
type QueryState string

const (
	StateReceived         QueryState = "received"
	StateRetrieving       QueryState = "retrieving"
	StateRetrieved        QueryState = "retrieved"
	StateRetrievalEmpty   QueryState = "retrieval_empty"
	StateGenerating       QueryState = "generating"
	StateAnswered         QueryState = "answered"
	StateGenerationFailed QueryState = "generation_failed"
)

// AnswerPacket is the uniform pipeline response. Every path, including
// failures, produces a well-formed packet.
type AnswerPacket struct {
	Answer   string     `json:"answer"`
	Mode     AnswerMode `json:"mode"`
	State    QueryState `json:"state"`
	Sources  []Source   `json:"sources"`
	TopScore float64    `json:"top_score,omitempty"`
}
