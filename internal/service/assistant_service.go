package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ai-analyst-be/internal/dto"
	"ai-analyst-be/internal/entity"
	"ai-analyst-be/internal/pkg/logger"
	"ai-analyst-be/internal/repository/specification"
	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/pkg/agent"
	"ai-analyst-be/pkg/agent/evaluation"
	"ai-analyst-be/pkg/events"
	pktNats "ai-analyst-be/pkg/nats"
	"ai-analyst-be/pkg/store"
	"ai-analyst-be/pkg/tabular"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const answerCacheTTL = 10 * time.Minute

type IAssistantService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	DeleteSession(ctx context.Context, request *dto.DeleteSessionRequest) error
	Ask(ctx context.Context, request *dto.AskRequest) (*dto.AskResponse, error)
	ReloadDataset(ctx context.Context, request *dto.ReloadDatasetRequest) (*dto.ReloadDatasetResponse, error)
}

type assistantService struct {
	uowFactory     unitofwork.RepositoryFactory
	orchestrator   *agent.Orchestrator
	tabularStore   *tabular.Store
	redisClient    *redis.Client
	eventPublisher *pktNats.Publisher
	evaluator      *evaluation.Evaluator
	sysLogger      logger.ILogger
	logger         *log.Logger
}

func NewAssistantService(
	uowFactory unitofwork.RepositoryFactory,
	orchestrator *agent.Orchestrator,
	tabularStore *tabular.Store,
	redisClient *redis.Client,
	eventPublisher *pktNats.Publisher,
	evaluator *evaluation.Evaluator,
	sysLogger logger.ILogger,
) IAssistantService {
	return &assistantService{
		uowFactory:     uowFactory,
		orchestrator:   orchestrator,
		tabularStore:   tabularStore,
		redisClient:    redisClient,
		eventPublisher: eventPublisher,
		evaluator:      evaluator,
		sysLogger:      sysLogger,
		logger:         initAgentLogger(),
	}
}

func initAgentLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "agent.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[AGENT] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

func (as *assistantService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	session := &entity.ChatSession{Title: "New Conversation"}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (as *assistantService) GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specification.OrderBy{Field: "updated_at", Desc: true})
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.GetAllSessionsResponse, len(sessions))
	for i, s := range sessions {
		responses[i] = &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		}
	}
	return responses, nil
}

func (as *assistantService) GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.GetChatHistoryResponse, len(messages))
	for i, m := range messages {
		responses[i] = &dto.GetChatHistoryResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			SQLQuery:  m.SQLQuery,
			Trace:     m.Trace,
			CreatedAt: m.CreatedAt,
		}
	}
	return responses, nil
}

func (as *assistantService) DeleteSession(ctx context.Context, request *dto.DeleteSessionRequest) error {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, request.ChatSessionId); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, request.ChatSessionId); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// Ask answers one question within a session: orchestrate, persist both turns
// with the full trace, then emit an audit event. A recently answered
// identical question within the same session state is served from cache.
func (as *assistantService) Ask(ctx context.Context, request *dto.AskRequest) (*dto.AskResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: request.ChatSessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session %s not found", request.ChatSessionId)
	}

	turnCount, err := uow.ChatMessageRepository().Count(ctx, specification.ByChatSessionID{ChatSessionID: request.ChatSessionId})
	if err != nil {
		return nil, err
	}

	cacheKey := answerCacheKey(request.ChatSessionId, request.Question, turnCount)
	if cached := as.cachedAnswer(ctx, cacheKey); cached != nil {
		as.logger.Printf("[CACHE] Serving cached answer for session %s", request.ChatSessionId)
		return cached, nil
	}

	result, err := as.orchestrator.Answer(ctx, request.Question, request.ChatSessionId.String())
	if err != nil {
		as.sysLogger.Error("AssistantService", "Orchestrator failed", map[string]interface{}{
			"chat_session_id": request.ChatSessionId.String(),
			"error":           err.Error(),
		})
		return nil, err
	}
	as.sysLogger.Info("AssistantService", "Question answered", map[string]interface{}{
		"chat_session_id": request.ChatSessionId.String(),
		"status":          result.Status,
		"steps":           len(result.Trace),
	})

	if result.Status != store.StatusCancelled {
		if err := as.persistTurns(ctx, request, result); err != nil {
			// The answer is computed; persistence failure must not lose it
			as.logger.Printf("[WARN] Failed to persist turns for session %s: %v", request.ChatSessionId, err)
		}
		as.publishAudit(ctx, request.ChatSessionId, result)
	}

	response := &dto.AskResponse{
		ChatSessionId: request.ChatSessionId,
		Answer:        result.Answer,
		Status:        result.Status,
		SQLQuery:      result.SQLQuery,
		Sources:       result.Sources,
		Timing:        result.Timing,
		Trace:         result.Trace,
	}

	if result.Status == store.StatusOK {
		response.Evaluation = as.evaluateAnswer(ctx, request.Question, result)
		as.cacheAnswer(ctx, cacheKey, response)
	}
	return response, nil
}

// evaluateAnswer grades a successful answer when the evaluator is enabled.
// Grading is best effort and never blocks the response.
func (as *assistantService) evaluateAnswer(ctx context.Context, question string, result *store.AnswerResult) map[string]float64 {
	if as.evaluator == nil {
		return nil
	}
	scores, err := as.evaluator.Evaluate(ctx, question, result.Answer, result.Sources)
	if err != nil {
		as.logger.Printf("[WARN] Answer evaluation failed: %v", err)
		return nil
	}
	return scores
}

func (as *assistantService) ReloadDataset(ctx context.Context, request *dto.ReloadDatasetRequest) (*dto.ReloadDatasetResponse, error) {
	if err := as.tabularStore.LoadDataset(request.Path); err != nil {
		return nil, err
	}
	return &dto.ReloadDatasetResponse{
		Table:   as.tabularStore.TableName(),
		Columns: as.tabularStore.Columns(),
	}, nil
}

func (as *assistantService) persistTurns(ctx context.Context, request *dto.AskRequest, result *store.AnswerResult) error {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}

	userMsg := &entity.ChatMessage{
		ChatSessionId: request.ChatSessionId,
		Role:          store.RoleUser,
		Content:       request.Question,
	}
	if err := uow.ChatMessageRepository().Create(ctx, userMsg); err != nil {
		_ = uow.Rollback()
		return err
	}

	assistantMsg := &entity.ChatMessage{
		ChatSessionId: request.ChatSessionId,
		Role:          store.RoleAssistant,
		Content:       result.Answer,
		SQLQuery:      result.SQLQuery,
		Trace:         result.Trace,
	}
	if err := uow.ChatMessageRepository().Create(ctx, assistantMsg); err != nil {
		_ = uow.Rollback()
		return err
	}

	return uow.Commit()
}

func (as *assistantService) publishAudit(ctx context.Context, sessionId uuid.UUID, result *store.AnswerResult) {
	if as.eventPublisher == nil {
		return
	}

	evt := events.New("ANSWER_COMPLETED", map[string]interface{}{
		"chat_session_id": sessionId.String(),
		"status":          result.Status,
		"steps":           len(result.Trace),
		"used_sql":        result.SQLQuery != "",
	})
	if err := as.eventPublisher.Publish(ctx, evt); err != nil {
		as.logger.Printf("[WARN] Failed to publish answer audit event: %v", err)
	}
}

func (as *assistantService) cachedAnswer(ctx context.Context, key string) *dto.AskResponse {
	if as.redisClient == nil {
		return nil
	}
	raw, err := as.redisClient.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var response dto.AskResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return nil
	}
	return &response
}

func (as *assistantService) cacheAnswer(ctx context.Context, key string, response *dto.AskResponse) {
	if as.redisClient == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := as.redisClient.Set(ctx, key, raw, answerCacheTTL).Err(); err != nil {
		as.logger.Printf("[WARN] Failed to cache answer: %v", err)
	}
}

// answerCacheKey keys on the session state depth so the cache never replays a
// stale answer after the conversation has moved on.
func answerCacheKey(sessionId uuid.UUID, question string, turnCount int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", sessionId, turnCount, question)))
	return "answer_cache:" + hex.EncodeToString(sum[:])
}
