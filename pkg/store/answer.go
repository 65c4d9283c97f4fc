package store

// Engine labels produced by intent classification.
const (
	EngineStructured = "STRUCTURED"
	EngineRetrieval  = "RETRIEVAL"
)

// IntentDecision is the result of classifying one question.
type IntentDecision struct {
	Engine         string `json:"engine"`
	RawSignal      string `json:"raw_signal"`
	UsedHistory    bool   `json:"used_history"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// RetrievedDoc is a unit of indexed content returned by the document index.
// Score is an engine-defined ordering key; it is not comparable across queries.
type RetrievedDoc struct {
	ChunkID string  `json:"chunk_id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Structured attempt outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeEmpty   = "EMPTY"
	OutcomeError   = "ERROR"
)

// StructuredAttempt records one query generation-and-execution try.
type StructuredAttempt struct {
	Index   int              `json:"index"` // 1-based
	Hint    string           `json:"hint,omitempty"`
	Query   string           `json:"query,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Error   string           `json:"error,omitempty"`
	Outcome string           `json:"outcome"`
}

// Judgment statuses.
const (
	JudgmentSolved   = "SOLVED"
	JudgmentContinue = "CONTINUE"
)

// Judgment is the model's verdict on accumulated evidence, validated at the
// model boundary. Status is always one of the constants above.
type Judgment struct {
	Status    string `json:"status"`
	Answer    string `json:"answer,omitempty"`
	Clues     string `json:"clues,omitempty"`
	NextQuery string `json:"next_query,omitempty"`
}

// RetrievalRound records one refine-and-judge iteration. Immutable once
// produced. Error is set when the round's search or judgment call failed, so
// the trace still accounts for documents retrieved by a round that never
// reached a verdict.
type RetrievalRound struct {
	Index    int            `json:"index"` // 1-based
	Query    string         `json:"query"`
	Docs     []RetrievedDoc `json:"docs"`
	Judgment Judgment       `json:"judgment"`
	Error    string         `json:"error,omitempty"`
}

// Trace step names, in the order they can occur.
const (
	StepIntentRecognition = "IntentRecognition"
	StepStructuredQuery   = "StructuredQuery"
	StepRetrieval         = "Retrieval"
	StepFallback          = "Fallback"
	StepFinalAnswer       = "FinalAnswer"
)

// TraceStep describes one decision made while answering. The payload shape
// depends on the step name: attempt sequence, round sequence, or plain
// key/value details.
type TraceStep struct {
	Step     string              `json:"step"`
	Strategy string              `json:"strategy,omitempty"`
	Attempts []StructuredAttempt `json:"attempts,omitempty"`
	Rounds   []RetrievalRound    `json:"rounds,omitempty"`
	Details  map[string]any      `json:"details,omitempty"`
}

// TraceLog is the ordered step record for one answer.
type TraceLog []TraceStep

// Answer statuses.
const (
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// AnswerResult is the outward result of one orchestrator invocation.
type AnswerResult struct {
	Answer   string             `json:"answer"`
	Sources  []RetrievedDoc     `json:"sources,omitempty"`
	Timing   map[string]float64 `json:"timing"`
	SQLQuery string             `json:"sql_query,omitempty"`
	Status   string             `json:"status"`
	Trace    TraceLog           `json:"trace_log"`
}
