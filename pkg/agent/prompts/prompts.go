// Package prompts is the single catalog of model prompts used by the
// analyst engines. Keeping them in one place makes the prompt surface
// reviewable without digging through the engines.
package prompts

import (
	"fmt"
	"strings"

	"ai-analyst-be/pkg/store"
)

// FormatHistory renders turns the way the judgment and generation prompts
// expect them: one line per turn, oldest first.
func FormatHistory(turns []store.Turn) string {
	if len(turns) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case store.RoleUser:
			b.WriteString("Human: ")
		case store.RoleAssistant:
			b.WriteString("AI: ")
		default:
			continue
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "none"
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildIntentPrompt asks the model to classify a question as a structured
// (tabular) query or an unstructured retrieval question.
func BuildIntentPrompt(question string, history string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an intent classifier. Your ONLY job is to decide which engine should answer the user's question.\n")
	prompt.WriteString("You do NOT answer the question itself.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<conversation_history>\n")
	prompt.WriteString(history)
	prompt.WriteString("\n</conversation_history>\n\n")

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")

	prompt.WriteString("<label_definitions>\n")
	prompt.WriteString("STRUCTURED: the question asks for counting, sums, averages, min/max, sorting, threshold filters, or the value of a specific field of a specific record.\n")
	prompt.WriteString("  Examples: \"How many contracts were signed in 2023?\", \"List orders above 100\", \"What is the email of record 1001?\"\n\n")
	prompt.WriteString("RETRIEVAL: the question asks about descriptions, background, procedures, policies, definitions, or anything needing semantic understanding of documents.\n")
	prompt.WriteString("  Examples: \"What is our refund policy?\", \"Describe the onboarding process\", \"Why was this error code raised?\"\n")
	prompt.WriteString("</label_definitions>\n\n")

	prompt.WriteString("Respond with exactly one word: STRUCTURED or RETRIEVAL. No punctuation, no explanation.")

	return prompt.String()
}

// BuildSQLPrompt asks the model to generate a SQLite query. The hint, when
// present, steers a retry toward an alternative reading of the question.
func BuildSQLPrompt(question, tableName string, columns []string, history, hint string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a SQL generation expert. Produce one standard SQLite query answering the user's question against the table below.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<schema>\n")
	prompt.WriteString(fmt.Sprintf("Table: %s\n", tableName))
	prompt.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(columns, ", ")))
	prompt.WriteString("</schema>\n\n")

	prompt.WriteString("<conversation_history>\n")
	prompt.WriteString(history)
	prompt.WriteString("\n</conversation_history>\n\n")

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")

	if hint != "" {
		prompt.WriteString("<retry_hint>\n")
		prompt.WriteString(hint)
		prompt.WriteString("\n</retry_hint>\n\n")
	}

	prompt.WriteString("<rules>\n")
	prompt.WriteString("1. Map the user's business terms to the closest matching column names.\n")
	prompt.WriteString("2. When the user asks \"which\", \"who\", \"list\" or for details, SELECT the concrete columns; do not collapse to COUNT(*).\n")
	prompt.WriteString("3. Use aggregate functions only when the user asks purely for a count, sum, or average.\n")
	prompt.WriteString("4. Use LIKE '%keyword%' for fuzzy text matching.\n")
	prompt.WriteString("5. Return the plain SQL text only. No markdown fences, no commentary.\n")
	prompt.WriteString("</rules>\n\n")

	prompt.WriteString("SQL:")

	return prompt.String()
}

// Hint phrasing differs by failure class: a malformed query needs a syntax
// correction, an empty result needs an alternative column interpretation.
func SyntaxHint() string {
	return "The previous query was rejected by the database. Rewrite it using strictly valid SQLite syntax; quote identifiers containing special characters with double quotes."
}

func ColumnHint(column string) string {
	return fmt.Sprintf("The previous query matched no rows. Re-interpret the question using the column %q as the filter or target field.", column)
}

// BuildColumnCandidatesPrompt asks the model which columns plausibly carry
// the entities mentioned in the question. The reply is a JSON object:
// {"candidates": ["col_a", "col_b"], "reason": "..."}.
func BuildColumnCandidatesPrompt(question, tableName string, columns []string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a schema semantic mapping engine. Identify which columns most likely correspond to the filter entities in the user's query.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<context>\n")
	prompt.WriteString(fmt.Sprintf("Table: %s\n", tableName))
	prompt.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(columns, ", ")))
	prompt.WriteString(fmt.Sprintf("User query: %s\n", question))
	prompt.WriteString("</context>\n\n")

	prompt.WriteString("<rules>\n")
	prompt.WriteString("1. Extract the nouns or phrases acting as filter conditions or query targets.\n")
	prompt.WriteString("2. Rank matching columns: exact match > synonym/abbreviation > semantic relation > fuzzy.\n")
	prompt.WriteString("3. Reason from the literal meaning of the column names; do not assume a specific industry.\n")
	prompt.WriteString("</rules>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY a JSON object, no markdown:\n")
	prompt.WriteString("{\"candidates\": [\"column_1\", \"column_2\"], \"reason\": \"brief justification\"}\n")
	prompt.WriteString("Use an empty candidates list when the query names no concrete filter entity.\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// BuildSQLAnswerPrompt turns an executed query and its raw result into a
// natural-language answer.
func BuildSQLAnswerPrompt(question, sql, resultTable string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("User question: %s\n", question))
	prompt.WriteString(fmt.Sprintf("Executed SQL: %s\n", sql))
	prompt.WriteString("Query result:\n")
	prompt.WriteString(resultTable)
	prompt.WriteString("\n\n")

	prompt.WriteString("Answer the user's question in natural, fluent language based strictly on the query result.\n")
	prompt.WriteString("1. If the result is a list and the user asked for a count, count the rows yourself and state the number.\n")
	prompt.WriteString("2. Present the relevant values clearly; show all returned rows unless the user asked only for a total.\n")
	prompt.WriteString("3. If the result is empty, say that no matching records were found.\n")
	prompt.WriteString("4. Use neutral wording such as \"records\" or \"entries\"; do not invent domain terms not present in the data.")

	return prompt.String()
}

// JudgmentSystemPrompt is the system message for the retrieval judgment call.
func JudgmentSystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("You are a retrieval assistant. Your task is to decide whether the reference material contains the complete information needed to answer the user's question.\n")
	prompt.WriteString("Strict rules:\n")
	prompt.WriteString("1. No hallucination: if the exact identifier, code, name or keyword the user asked about is absent, never guess or substitute look-alike data.\n")
	prompt.WriteString("2. Prefer another search round over giving up: when the material is insufficient, propose a new, more specific query.\n")
	prompt.WriteString("3. Exact matching: IDs, codes, order numbers and proper nouns must match exactly.")

	return prompt.String()
}

// BuildJudgmentPrompt is the user message for the retrieval judgment call.
// The model replies in the line-oriented STATUS/CONTENT/CLUES/NEXT_QUERY
// format parsed by the retrieval engine.
func BuildJudgmentPrompt(question, accumulatedClues string, contexts []string, history string) string {
	var prompt strings.Builder

	prompt.WriteString("<conversation_history>\n")
	prompt.WriteString(history)
	prompt.WriteString("\n</conversation_history>\n\n")

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")

	prompt.WriteString("<accumulated_clues>\n")
	if accumulatedClues == "" {
		prompt.WriteString("none")
	} else {
		prompt.WriteString(accumulatedClues)
	}
	prompt.WriteString("\n</accumulated_clues>\n\n")

	prompt.WriteString("<current_batch>\n")
	for i, txt := range contexts {
		prompt.WriteString(fmt.Sprintf("--- Doc %d ---\n%s\n", i+1, txt))
	}
	prompt.WriteString("</current_batch>\n\n")

	prompt.WriteString("Analyse the material and reply in exactly one of these formats:\n\n")
	prompt.WriteString("Case 1 - the material fully answers the question:\n")
	prompt.WriteString("STATUS: SOLVED\n")
	prompt.WriteString("CONTENT: [your final answer]\n\n")
	prompt.WriteString("Case 2 - more evidence is needed:\n")
	prompt.WriteString("STATUS: SEARCH_MORE\n")
	prompt.WriteString("CLUES: [new clues extracted from the current batch, or \"none\"]\n")
	prompt.WriteString("NEXT_QUERY: [a short, precise search phrase for the missing information]\n\n")
	prompt.WriteString("Case 3 - insufficient and no useful new query can be formed:\n")
	prompt.WriteString("STATUS: GIVE_UP\n")
	prompt.WriteString("CLUES: [summary of what is known]\n\n")
	prompt.WriteString("NEXT_QUERY must target the missing fact specifically and must not repeat an already-searched phrase.")

	return prompt.String()
}

// NoAnswerSentinel is the exact phrase the summary prompt instructs the model
// to emit when the gathered clues cannot answer the question. The retrieval
// engine keys failure detection on it.
const NoAnswerSentinel = "No answer can be provided from the knowledge base."

// BuildSummaryPrompt produces the last-resort answer from accumulated clues
// after the retrieval budget is exhausted without a SOLVED judgment.
func BuildSummaryPrompt(question, clues, history string) string {
	var prompt strings.Builder

	prompt.WriteString("<conversation_history>\n")
	prompt.WriteString(history)
	prompt.WriteString("\n</conversation_history>\n\n")

	prompt.WriteString(fmt.Sprintf("User question: %s\n", question))
	prompt.WriteString("Collected clues:\n")
	prompt.WriteString(clues)
	prompt.WriteString("\n\n")

	prompt.WriteString("Try to answer the question based on the clues above.\n")
	prompt.WriteString("Important:\n")
	prompt.WriteString("1. If the clues support an answer, give it directly.\n")
	prompt.WriteString(fmt.Sprintf("2. If the clues are insufficient or irrelevant, reply with exactly this sentence and nothing else: %q", NoAnswerSentinel))

	return prompt.String()
}

// BuildEvaluationPrompt asks the model to grade a finished answer against the
// material it was drawn from. The reply is a JSON object with scores in
// [0, 1]: faithfulness (is every claim supported by the contexts) and
// answer_relevancy (does the answer address the question).
func BuildEvaluationPrompt(question, answer string, contexts []string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a strict answer quality grader. Grade the answer below against the reference material only; outside knowledge does not count as support.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")

	prompt.WriteString("<answer>\n")
	prompt.WriteString(answer)
	prompt.WriteString("\n</answer>\n\n")

	prompt.WriteString("<reference_material>\n")
	for i, txt := range contexts {
		prompt.WriteString(fmt.Sprintf("--- Source %d ---\n%s\n", i+1, txt))
	}
	prompt.WriteString("</reference_material>\n\n")

	prompt.WriteString("Score two dimensions, each from 0.0 to 1.0:\n")
	prompt.WriteString("- faithfulness: fraction of the answer's claims directly supported by the reference material.\n")
	prompt.WriteString("- answer_relevancy: how completely the answer addresses the question actually asked.\n\n")
	prompt.WriteString(`Respond with only a JSON object, no explanation: {"faithfulness": <score>, "answer_relevancy": <score>}`)

	return prompt.String()
}
