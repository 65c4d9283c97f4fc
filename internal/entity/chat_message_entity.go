package entity

import (
	"time"

	"github.com/google/uuid"

	"ai-analyst-be/pkg/store"
)

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	SQLQuery      string
	Trace         store.TraceLog
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
