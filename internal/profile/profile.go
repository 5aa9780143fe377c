package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Chat model (OpenAI-compatible protocol)
	LLMProvider    string // openai, openrouter, deepseek, siliconflow, ollama
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTimeout     int // seconds
	LLMTemperature float32

	// Moderation, image, speech and transcription share the OpenAI account by
	// default; each can be redirected with its own base URL.
	ModerationModel    string
	MediaBaseURL       string
	MediaAPIKey        string
	ImageModel         string
	ImageSize          string
	ImageMaxSide       int
	SpeechModel        string
	SpeechVoice        string
	TranscriptionModel string

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Reranker configuration
	RerankEnabled bool
	RerankModel   string
	RerankAPIKey  string
	RerankBaseURL string

	// Access
	JWTSecret string

	// Librarian behavior
	CorpusPath           string
	PromptDir            string
	PersistResponseCache bool
	DegradeSpeechFailure bool

	// Server
	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider default chat models, used when SMARTLIB_LLM_MODEL is unset.
var llmProviderDefaults = map[string]string{
	"openai":      "gpt-3.5-turbo",
	"openrouter":  "openai/gpt-4o-mini",
	"deepseek":    "deepseek-chat",
	"siliconflow": "Qwen/Qwen2.5-72B-Instruct",
	"ollama":      "llama3.1",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// FromEnv loads model and behavior configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("SMARTLIB_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("SMARTLIB_LLM_API_KEY", os.Getenv("OPENAI_API_KEY"))
	p.LLMBaseURL = getEnvOrDefault("SMARTLIB_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("SMARTLIB_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("SMARTLIB_LLM_TIMEOUT_SECONDS", 120)
	p.LLMTemperature = getEnvOrDefaultFloat("SMARTLIB_LLM_TEMPERATURE", 0.6)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	if p.LLMModel == "" {
		p.LLMModel = llmProviderDefaults[p.LLMProvider]
	}

	p.ModerationModel = getEnvOrDefault("SMARTLIB_MODERATION_MODEL", "omni-moderation-latest")
	p.MediaAPIKey = getEnvOrDefault("SMARTLIB_MEDIA_API_KEY", p.LLMAPIKey)
	p.MediaBaseURL = getEnvOrDefault("SMARTLIB_MEDIA_BASE_URL", "")
	p.ImageModel = getEnvOrDefault("SMARTLIB_IMAGE_MODEL", "dall-e-3")
	p.ImageSize = getEnvOrDefault("SMARTLIB_IMAGE_SIZE", "1024x1024")
	p.ImageMaxSide = getEnvOrDefaultInt("SMARTLIB_IMAGE_MAX_SIDE", 512)
	p.SpeechModel = getEnvOrDefault("SMARTLIB_SPEECH_MODEL", "tts-1")
	p.SpeechVoice = getEnvOrDefault("SMARTLIB_SPEECH_VOICE", "alloy")
	p.TranscriptionModel = getEnvOrDefault("SMARTLIB_TRANSCRIPTION_MODEL", "whisper-1")

	p.EmbeddingProvider = getEnvOrDefault("SMARTLIB_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("SMARTLIB_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("SMARTLIB_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("SMARTLIB_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("SMARTLIB_EMBEDDING_DIMENSIONS", 0)

	p.RerankAPIKey = getEnvOrDefault("SMARTLIB_RERANK_API_KEY", "")
	p.RerankEnabled = getEnvBool("SMARTLIB_RERANK_ENABLED", p.RerankAPIKey != "")
	p.RerankModel = getEnvOrDefault("SMARTLIB_RERANK_MODEL", "BAAI/bge-reranker-v2-m3")
	p.RerankBaseURL = getEnvOrDefault("SMARTLIB_RERANK_BASE_URL", "https://api.siliconflow.cn/v1")

	p.JWTSecret = getEnvOrDefault("SMARTLIB_JWT_SECRET", os.Getenv("JWT_SECRET"))
	p.PersistResponseCache = getEnvBool("SMARTLIB_PERSIST_RESPONSE_CACHE", true)
	p.DegradeSpeechFailure = getEnvBool("SMARTLIB_DEGRADE_SPEECH_FAILURE", false)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the mode, resolves the data directory and derives the
// sqlite DSN when none is given.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a dsn")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "smartlibrarian")
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		} else {
			p.Data = "/var/opt/smartlibrarian"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("smartlibrarian_%s.db", p.Mode))
	}
	if p.CorpusPath == "" {
		p.CorpusPath = filepath.Join(dataDir, "book_summaries.txt")
	}

	return nil
}
