package quizbot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
)

// Backend names accepted by Config.Backend
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Config holds process-wide settings
type Config struct {
	Backend string

	OpenAIAPIKey      string
	OpenAIAssistantID string
	OpenAIModel       string
	OpenAIBaseURL     string

	OllamaURL   string
	OllamaModel string

	PollInterval time.Duration
	WaitCeiling  time.Duration
	MaxAttempts  int
	SessionTTL   time.Duration

	DBPath        string
	TranscriptDir string
	SessionSecret string
	Port          string
	Verbose       bool
}

// LoadConfig reads an optional .env file and then the environment
func LoadConfig(envFiles ...string) Config {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables
func FromEnv() Config {
	return Config{
		Backend:           strings.ToLower(envOr("QUIZ_BACKEND", BackendOpenAI)),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIAssistantID: os.Getenv("OPENAI_ASSISTANT_ID"),
		OpenAIModel:       envOr("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OllamaURL:         envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       envOr("OLLAMA_MODEL", "gemma3"),
		PollInterval:      envDuration("QUIZ_POLL_INTERVAL", DefaultPollInterval),
		WaitCeiling:       envDuration("QUIZ_WAIT_CEILING", DefaultWaitCeiling),
		MaxAttempts:       envInt("QUIZ_MAX_ATTEMPTS", DefaultMaxAttempts),
		SessionTTL:        envDuration("QUIZ_SESSION_TTL", DefaultSessionTTL),
		DBPath:            envOr("QUIZ_DB_PATH", "./quiz.db"),
		TranscriptDir:     envOr("QUIZ_TRANSCRIPT_DIR", "log"),
		SessionSecret:     envOr("SESSION_SECRET", "change-me-quiz-session-secret"),
		Port:              envOr("PORT", "8180"),
		Verbose:           envBool("QUIZ_VERBOSE", false),
	}
}

// EngineOptions returns the engine tuning carried by the config
func (c Config) EngineOptions(transcripts *TranscriptLog) EngineOptions {
	return EngineOptions{
		PollInterval: c.PollInterval,
		WaitCeiling:  c.WaitCeiling,
		MaxAttempts:  c.MaxAttempts,
		Transcripts:  transcripts,
	}
}

// NewBackend builds the configured backend
func (c Config) NewBackend(ctx context.Context) (Backend, error) {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the %s backend", BackendOpenAI)
		}
		clientCfg := openai.DefaultConfig(c.OpenAIAPIKey)
		if c.OpenAIBaseURL != "" {
			clientCfg.BaseURL = c.OpenAIBaseURL
		}
		b := NewAssistantsBackendWithConfig(clientCfg, c.OpenAIAssistantID)
		if _, err := b.EnsureAssistant(ctx, c.OpenAIModel); err != nil {
			return nil, err
		}
		return b, nil
	case BackendOllama:
		return NewOllamaBackend(c.OllamaURL, c.OllamaModel)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q", key, v)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q", key, v)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q", key, v)
		return def
	}
	return d
}
