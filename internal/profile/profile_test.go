package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var profileEnvVars = []string{
	"SMARTLIB_LLM_PROVIDER", "SMARTLIB_LLM_API_KEY", "SMARTLIB_LLM_BASE_URL", "SMARTLIB_LLM_MODEL",
	"SMARTLIB_LLM_TIMEOUT_SECONDS", "SMARTLIB_LLM_TEMPERATURE", "OPENAI_API_KEY",
	"SMARTLIB_MEDIA_API_KEY", "SMARTLIB_EMBEDDING_API_KEY", "SMARTLIB_RERANK_API_KEY",
	"SMARTLIB_RERANK_ENABLED", "SMARTLIB_SPEECH_VOICE", "SMARTLIB_DEGRADE_SPEECH_FAILURE",
	"SMARTLIB_PERSIST_RESPONSE_CACHE", "SMARTLIB_JWT_SECRET", "JWT_SECRET",
}

func clearProfileEnv(t *testing.T) {
	t.Helper()
	for _, key := range profileEnvVars {
		t.Setenv(key, "")
	}
}

// TestProfileDefaults checks the values used with an empty environment.
func TestProfileDefaults(t *testing.T) {
	clearProfileEnv(t)

	p := &Profile{}
	p.FromEnv()

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"LLMProvider", p.LLMProvider, "openai"},
		{"LLMModel", p.LLMModel, "gpt-3.5-turbo"},
		{"LLMTimeout", p.LLMTimeout, 120},
		{"LLMTemperature", p.LLMTemperature, float32(0.6)},
		{"ModerationModel", p.ModerationModel, "omni-moderation-latest"},
		{"SpeechVoice", p.SpeechVoice, "alloy"},
		{"EmbeddingModel", p.EmbeddingModel, "text-embedding-3-small"},
		{"RerankEnabled", p.RerankEnabled, false},
		{"PersistResponseCache", p.PersistResponseCache, true},
		{"DegradeSpeechFailure", p.DegradeSpeechFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.actual, tt.expected)
			}
		})
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearProfileEnv(t)
	t.Setenv("SMARTLIB_LLM_PROVIDER", "deepseek")
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("SMARTLIB_RERANK_API_KEY", "rk")
	t.Setenv("SMARTLIB_DEGRADE_SPEECH_FAILURE", "true")
	t.Setenv("JWT_SECRET", "legacy-secret")

	p := &Profile{}
	p.FromEnv()

	if p.LLMModel != "deepseek-chat" {
		t.Errorf("LLMModel = %q, want provider default deepseek-chat", p.LLMModel)
	}
	if p.LLMAPIKey != "sk-shared" || p.MediaAPIKey != "sk-shared" || p.EmbeddingAPIKey != "sk-shared" {
		t.Errorf("api keys not inherited from OPENAI_API_KEY: %+v", p)
	}
	if !p.RerankEnabled {
		t.Error("RerankEnabled = false, want true when a rerank key is set")
	}
	if !p.DegradeSpeechFailure {
		t.Error("DegradeSpeechFailure = false, want true")
	}
	if p.JWTSecret != "legacy-secret" {
		t.Errorf("JWTSecret = %q, want legacy-secret", p.JWTSecret)
	}
}

func TestProfileUnknownProvider(t *testing.T) {
	clearProfileEnv(t)
	t.Setenv("SMARTLIB_LLM_PROVIDER", "nope")

	p := &Profile{}
	p.FromEnv()

	if p.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want openai", p.LLMProvider)
	}
}

func TestProfileValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		want := filepath.Join(dir, "smartlibrarian_dev.db")
		if p.DSN != want {
			t.Errorf("DSN = %q, want %q", p.DSN, want)
		}
		if strings.Contains(p.DSN, "?") {
			t.Errorf("DSN should not carry query parameters: %q", p.DSN)
		}
		if p.CorpusPath != filepath.Join(dir, "book_summaries.txt") {
			t.Errorf("CorpusPath = %q", p.CorpusPath)
		}
	})

	t.Run("invalid mode falls back to demo", func(t *testing.T) {
		p := &Profile{Mode: "weird", Driver: "sqlite", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if p.Mode != "demo" {
			t.Errorf("Mode = %q, want demo", p.Mode)
		}
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: dir}
		if err := p.Validate(); err == nil {
			t.Error("Validate() error = nil, want dsn error")
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: dir}
		if err := p.Validate(); err == nil {
			t.Error("Validate() error = nil, want driver error")
		}
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: filepath.Join(dir, "absent")}
		if err := p.Validate(); err == nil {
			t.Error("Validate() error = nil, want data dir error")
		}
	})
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
