package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	SessionSecret string
	DatabaseURL   string
	HTTPPort      string
	LogLevel      string

	LLMProvider   string // "openai" or "gemini"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		SessionSecret: getEnv("SESSION_SECRET", ""),
		DatabaseURL:   getEnv("DATABASE_URL", "learningchat.db"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
	}

	if AppConfig.SessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable is required")
	}

	switch AppConfig.LLMProvider {
	case "openai":
		if AppConfig.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if AppConfig.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
		}
	default:
		log.Fatalf("Unknown LLM_PROVIDER %q (expected \"openai\" or \"gemini\")", AppConfig.LLMProvider)
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
