// Package agent wires intent routing, the two answer engines, fallback and
// tracing into a single question-answering orchestrator.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"ai-analyst-be/pkg/agent/intent"
	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/agent/retrieval"
	"ai-analyst-be/pkg/agent/session"
	"ai-analyst-be/pkg/agent/structured"
	"ai-analyst-be/pkg/agent/trace"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

// ErrInternal marks invariant violations inside the orchestrator itself, as
// opposed to ordinary engine failures which degrade into fallback.
var ErrInternal = errors.New("agent: internal error")

// StructuredSolver is the structured engine surface the orchestrator drives.
type StructuredSolver interface {
	Solve(ctx context.Context, question, history string) (*structured.Result, error)
}

// RetrievalSolver is the retrieval engine surface the orchestrator drives.
type RetrievalSolver interface {
	Solve(ctx context.Context, question, history string) (*retrieval.Result, error)
}

// Orchestrator answers one question at a time per session: classify intent,
// run the routed engine, fall back at most once to the other engine, then
// synthesize the final answer and persist both turns with the full trace.
type Orchestrator struct {
	router        *intent.Router
	structuredEng StructuredSolver
	retrievalEng  RetrievalSolver
	sessions      *session.Manager
	llmProvider   llm.LLMProvider
	historyWindow int
	logger        *log.Logger
}

type Config struct {
	HistoryWindow int // turns of history fed to prompts, default 5
}

func NewOrchestrator(
	router *intent.Router,
	structuredEng StructuredSolver,
	retrievalEng RetrievalSolver,
	sessions *session.Manager,
	llmProvider llm.LLMProvider,
	cfg Config,
	logger *log.Logger,
) *Orchestrator {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 5
	}
	return &Orchestrator{
		router:        router,
		structuredEng: structuredEng,
		retrievalEng:  retrievalEng,
		sessions:      sessions,
		llmProvider:   llmProvider,
		historyWindow: cfg.HistoryWindow,
		logger:        logger,
	}
}

// Answer processes one question end to end. The user turn is appended before
// any engine work so history is consistent even on failure; the history fed
// to prompts excludes the question being answered. The returned result always
// carries the full trace, whatever the status.
func (o *Orchestrator) Answer(ctx context.Context, question, sessionID string) (*store.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInternal)
	}

	timer := newPhaseTimer()
	rec := trace.NewRecorder()

	o.sessions.AppendUser(sessionID, question)
	history := o.historyBefore(sessionID)

	timer.start("intent_recognition")
	decision := o.router.Classify(ctx, question, history)
	timer.stop("intent_recognition")

	details := map[string]any{
		"raw_signal":   decision.RawSignal,
		"used_history": decision.UsedHistory,
	}
	if decision.FallbackReason != "" {
		details["fallback_reason"] = decision.FallbackReason
	}
	rec.AddDetails(store.StepIntentRecognition, decision.Engine, details)

	historyText := prompts.FormatHistory(history)

	var (
		sqlResult *structured.Result
		ragResult *retrieval.Result
		winner    string
	)

	for _, run := range planStrategies(decision.Engine) {
		if err := ctx.Err(); err != nil {
			return o.cancelled(rec, timer), nil
		}

		solved, err := o.runEngine(ctx, run, question, historyText, rec, timer, &sqlResult, &ragResult)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return o.cancelled(rec, timer), nil
			}
			o.logger.Printf("[AGENT] %s engine (%s) failed: %v", run.Engine, run.Label, err)
		}
		if solved {
			winner = run.Engine
			break
		}
		if run.Label == StrategyInitial {
			rec.AddDetails(store.StepFallback, "", map[string]any{
				"from":   run.Engine,
				"to":     counterpart(run.Engine),
				"reason": fmt.Sprintf("%s engine produced no answer", strings.ToLower(run.Engine)),
			})
		}
	}

	timer.start("final_answer")
	result := o.finalize(ctx, question, winner, sqlResult, ragResult, rec)
	timer.stop("final_answer")

	result.Timing = timer.snapshot()
	o.sessions.AppendAssistant(sessionID, result.Answer, result.Trace)
	return result, nil
}

// historyBefore returns the session turns preceding the just-appended
// question, bounded by the history window.
func (o *Orchestrator) historyBefore(sessionID string) []store.Turn {
	turns := o.sessions.Recent(sessionID, o.historyWindow+1)
	if len(turns) == 0 {
		return nil
	}
	return turns[:len(turns)-1]
}

func (o *Orchestrator) runEngine(
	ctx context.Context,
	run strategyRun,
	question, historyText string,
	rec *trace.Recorder,
	timer *phaseTimer,
	sqlResult **structured.Result,
	ragResult **retrieval.Result,
) (bool, error) {
	switch run.Engine {
	case store.EngineStructured:
		timer.start("structured_query")
		res, err := o.structuredEng.Solve(ctx, question, historyText)
		timer.stop("structured_query")
		if res != nil {
			*sqlResult = res
			rec.Add(store.TraceStep{Step: store.StepStructuredQuery, Strategy: run.Label, Attempts: res.Attempts})
		}
		if err != nil {
			return false, err
		}
		return res.Solved, nil

	case store.EngineRetrieval:
		timer.start("retrieval")
		res, err := o.retrievalEng.Solve(ctx, question, historyText)
		timer.stop("retrieval")
		if res != nil {
			*ragResult = res
			rec.Add(store.TraceStep{Step: store.StepRetrieval, Strategy: run.Label, Rounds: res.Rounds})
		}
		if err != nil {
			return false, err
		}
		return res.Solved, nil

	default:
		return false, fmt.Errorf("%w: unknown engine %q", ErrInternal, run.Engine)
	}
}

// finalize synthesizes the outward answer from whichever engine won. A
// structured win is narrated from the query and its rows; a retrieval win
// reuses the judged draft verbatim. No winner yields the apology with a
// failed status.
func (o *Orchestrator) finalize(
	ctx context.Context,
	question, winner string,
	sqlResult *structured.Result,
	ragResult *retrieval.Result,
	rec *trace.Recorder,
) *store.AnswerResult {
	result := &store.AnswerResult{Status: store.StatusOK}

	switch winner {
	case store.EngineStructured:
		rendered := renderRows(sqlResult.Rows)
		answer, err := o.llmProvider.Generate(ctx,
			prompts.BuildSQLAnswerPrompt(question, sqlResult.Query, rendered),
			llm.WithTemperature(0.0))
		if err != nil || strings.TrimSpace(answer) == "" {
			// The rows are the answer; narration is best-effort.
			o.logger.Printf("[AGENT] Answer synthesis failed, returning raw result: %v", err)
			answer = rendered
		}
		result.Answer = strings.TrimSpace(answer)
		result.SQLQuery = sqlResult.Query
		result.Sources = []store.RetrievedDoc{{ChunkID: "SQL", Content: sqlResult.Query}}
		rec.AddDetails(store.StepFinalAnswer, winner, map[string]any{"rows": len(sqlResult.Rows)})

	case store.EngineRetrieval:
		result.Answer = ragResult.Answer
		result.Sources = ragResult.Evidence
		rec.AddDetails(store.StepFinalAnswer, winner, map[string]any{"evidence": len(ragResult.Evidence)})

	default:
		result.Answer = ApologyAnswer
		result.Status = store.StatusFailed
		rec.AddDetails(store.StepFinalAnswer, "none", nil)
	}

	result.Trace = rec.Snapshot()
	return result
}

func (o *Orchestrator) cancelled(rec *trace.Recorder, timer *phaseTimer) *store.AnswerResult {
	return &store.AnswerResult{
		Status: store.StatusCancelled,
		Timing: timer.snapshot(),
		Trace:  rec.Snapshot(),
	}
}

// renderRows flattens result rows into a readable table for the synthesis
// prompt. Column order is stable across rows.
func renderRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(no rows)"
	}

	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteString("\n")
	for _, row := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = fmt.Sprintf("%v", row[c])
		}
		b.WriteString(strings.Join(vals, " | "))
		b.WriteString("\n")
	}
	return b.String()
}
