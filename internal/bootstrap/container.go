package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"ai-analyst-be/internal/config"
	"ai-analyst-be/internal/controller"
	"ai-analyst-be/internal/pkg/logger"
	"ai-analyst-be/internal/repository/memory"
	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/internal/service"
	"ai-analyst-be/pkg/agent"
	"ai-analyst-be/pkg/agent/evaluation"
	"ai-analyst-be/pkg/agent/intent"
	"ai-analyst-be/pkg/agent/retrieval"
	agentsession "ai-analyst-be/pkg/agent/session"
	"ai-analyst-be/pkg/agent/structured"
	"ai-analyst-be/pkg/docindex"
	"ai-analyst-be/pkg/embedding"
	"ai-analyst-be/pkg/embedding/jina"
	"ai-analyst-be/pkg/llm/factory"
	"ai-analyst-be/pkg/tabular"

	pktNats "ai-analyst-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AssistantController controller.IAssistantController
	DocumentController  controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Core agent components, exposed for tooling (seed, simulate)
	Orchestrator *agent.Orchestrator
	TabularStore *tabular.Store
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey, cfg.Ai.JinaModel)
		log.Printf("[INFO] Using Embedding Provider: JINA AI (%s)", cfg.Ai.JinaModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
		cfg.Ai.LLMTimeout,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (answer cache disabled)", err)
		rdb = nil
	}

	// 5. Agent Core
	agentLogger := newComponentLogger("logs/agent_core.log", "[AGENT-CORE] ")

	tabularStore, err := tabular.NewStore(agentLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to open tabular store: %v", err)
	}
	if cfg.Agent.DatasetPath != "" {
		if err := tabularStore.LoadDataset(cfg.Agent.DatasetPath); err != nil {
			log.Printf("[WARN] Failed to load dataset %s: %v (structured engine starts empty)", cfg.Agent.DatasetPath, err)
		}
	}

	var docIndex docindex.Index = docindex.NewPgVectorIndex(embeddingProvider, uowFactory, cfg.Agent.SimilarityThreshold, agentLogger)

	sessionRepo := memory.NewSessionRepository()
	sessionManager := agentsession.NewManager(sessionRepo)

	router := intent.NewRouter(llmProvider, cfg.Agent.HistoryWindow, agentLogger)
	structuredEngine := structured.NewEngine(llmProvider, tabularStore, cfg.Agent.MaxSQLAttempts, agentLogger)
	retrievalEngine := retrieval.NewEngine(llmProvider, docIndex, cfg.Agent.MaxRetrievalRounds, cfg.Agent.RetrievalBatchSize, agentLogger)

	orchestrator := agent.NewOrchestrator(
		router,
		structuredEngine,
		retrievalEngine,
		sessionManager,
		llmProvider,
		agent.Config{HistoryWindow: cfg.Agent.HistoryWindow},
		agentLogger,
	)

	var evaluator *evaluation.Evaluator
	if cfg.Agent.EnableEvaluation {
		evaluator = evaluation.NewEvaluator(llmProvider, agentLogger)
		log.Printf("[INFO] Answer evaluation enabled")
	}

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.EmbedChunkTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedChunkTopic,
		uowFactory,
		embeddingProvider,
	)

	documentService := service.NewDocumentService(uowFactory, publisherService)
	assistantService := service.NewAssistantService(
		uowFactory,
		orchestrator,
		tabularStore,
		rdb,
		natsPub,
		evaluator,
		sysLogger,
	)

	// 7. Controllers
	return &Container{
		AssistantController: controller.NewAssistantController(assistantService),
		DocumentController:  controller.NewDocumentController(documentService),
		ConsumerService:     consumerService,
		Orchestrator:        orchestrator,
		TabularStore:        tabularStore,
	}
}

func newComponentLogger(path, fallbackPrefix string) *log.Logger {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return log.New(os.Stdout, fallbackPrefix, log.LstdFlags)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, fallbackPrefix, log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
