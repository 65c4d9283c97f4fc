// Simulation client: drives the assistant API with a scripted conversation
// and pretty-prints each answer's execution trace.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"ai-analyst-be/pkg/store"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api/assistant"

type createSessionResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type askRequest struct {
	ChatSessionID string `json:"chat_session_id"`
	Question      string `json:"question"`
}

type askResponse struct {
	Data struct {
		Answer   string             `json:"answer"`
		Status   string             `json:"status"`
		SQLQuery string             `json:"sql_query"`
		Timing   map[string]float64 `json:"timing"`
		Trace    store.TraceLog     `json:"trace_log"`
	} `json:"data"`
}

func main() {
	header := color.New(color.FgCyan, color.Bold)
	header.Println("=== Analyst Agent Simulation Client ===")

	sessionID, err := createSession()
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Printf("Session Created: %s\n", sessionID)

	questions := []string{
		"How many orders were placed in March?",
		"What does the warranty policy say about water damage?",
		"Which customer spent the most overall?",
	}

	for _, q := range questions {
		color.New(color.FgGreen, color.Bold).Printf("\nUSER: %s\n", q)

		start := time.Now()
		reply, err := ask(sessionID, q)
		elapsed := time.Since(start)

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		color.New(color.FgWhite, color.Bold).Printf("AGENT (%s, %.1fs): %s\n", reply.Data.Status, elapsed.Seconds(), reply.Data.Answer)
		if reply.Data.SQLQuery != "" {
			color.Yellow("  SQL: %s", reply.Data.SQLQuery)
		}
		printTrace(reply.Data.Trace)
	}
}

func printTrace(trace store.TraceLog) {
	dim := color.New(color.Faint)
	for i, step := range trace {
		label := step.Step
		if step.Strategy != "" {
			label += " (" + step.Strategy + ")"
		}
		dim.Printf("  [%d] %s\n", i+1, label)
		for _, a := range step.Attempts {
			dim.Printf("      attempt %d: %s", a.Index, a.Outcome)
			if a.Error != "" {
				dim.Printf(" (%s)", a.Error)
			}
			dim.Println()
		}
		for _, r := range step.Rounds {
			dim.Printf("      round %d: %q -> %s (%d docs)\n", r.Index, r.Query, r.Judgment.Status, len(r.Docs))
		}
	}
}

func createSession() (string, error) {
	resp, err := http.Post(baseURL+"/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed createSessionResponse
	if err := decodeBody(resp, &parsed); err != nil {
		return "", err
	}
	return parsed.Data.ID, nil
}

func ask(sessionID, question string) (*askResponse, error) {
	payload, err := json.Marshal(askRequest{ChatSessionID: sessionID, Question: question})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/ask", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed askResponse
	if err := decodeBody(resp, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func decodeBody(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}
