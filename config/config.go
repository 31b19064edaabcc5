package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	ListenAddr string
	BackendURL string
	DataDir    string

	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        ModelConfig
	Embeddings EmbeddingConfig
}

type ModelConfig struct {
	Provider string
	Model    string
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

// Load reads configuration from the environment, honouring a .env file in the
// working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:  getEnv("LISTEN_ADDR", "127.0.0.1:8000"),
		BackendURL:  getEnv("BACKEND_URL", "http://127.0.0.1:8000"),
		DataDir:     getEnv("DATA_DIR", "data"),
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/pdfchat?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: ModelConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1"),
		},
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 768),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
