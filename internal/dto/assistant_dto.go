package dto

import (
	"time"

	"github.com/google/uuid"

	"ai-analyst-be/pkg/store"
)

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID      `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	SQLQuery  string         `json:"sql_query,omitempty"`
	Trace     store.TraceLog `json:"trace_log,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type AskRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Question      string    `json:"question" validate:"required,min=1,max=4000"`
}

type AskResponse struct {
	ChatSessionId uuid.UUID            `json:"chat_session_id"`
	Answer        string               `json:"answer"`
	Status        string               `json:"status"`
	SQLQuery      string               `json:"sql_query,omitempty"`
	Sources       []store.RetrievedDoc `json:"sources,omitempty"`
	Timing        map[string]float64   `json:"timing"`
	Trace         store.TraceLog       `json:"trace_log"`
	Evaluation    map[string]float64   `json:"evaluation,omitempty"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
}
