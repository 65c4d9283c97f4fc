package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Agent    AgentConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	EmbedChunkTopic    string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "ollama", "openai", "lmstudio"
	LLMModel          string
	LLMBaseURL        string
	LLMAPIKey         string
	LLMTimeout        time.Duration
	EmbeddingProvider string // "ollama" or "jina"
	OllamaBaseURL     string
	OllamaEmbedModel  string
	JinaAPIKey        string
	JinaModel         string
}

// AgentConfig carries the orchestrator budgets.
type AgentConfig struct {
	MaxSQLAttempts      int
	MaxRetrievalRounds  int
	RetrievalBatchSize  int
	HistoryWindow       int
	SimilarityThreshold float64
	DatasetPath         string
	EnableEvaluation    bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			EmbedChunkTopic:    getEnv("EMBED_DOCUMENT_CHUNK_TOPIC_NAME", "EMBED_DOCUMENT_CHUNK"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "qwen2.5"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
			LLMAPIKey:         getEnv("LLM_API_KEY", ""),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
			JinaModel:         getEnv("JINA_EMBEDDING_MODEL", "jina-embeddings-v3"),
		},
		Agent: AgentConfig{
			MaxSQLAttempts:      getEnvAsInt("AGENT_MAX_SQL_ATTEMPTS", 3),
			MaxRetrievalRounds:  getEnvAsInt("AGENT_MAX_RETRIEVAL_ROUNDS", 3),
			RetrievalBatchSize:  getEnvAsInt("AGENT_RETRIEVAL_BATCH_SIZE", 5),
			HistoryWindow:       getEnvAsInt("AGENT_HISTORY_WINDOW", 5),
			SimilarityThreshold: getEnvAsFloat("AGENT_SIMILARITY_THRESHOLD", 0.3),
			DatasetPath:         getEnv("AGENT_DATASET_PATH", "./data/dataset.json"),
			EnableEvaluation:    getEnvAsBool("AGENT_ENABLE_EVALUATION", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
