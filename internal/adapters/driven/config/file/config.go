// Package file loads service configuration from a TOML file with
// environment variable overrides. A .env file in the working directory
// is honoured when present.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultAddr         = ":8080"
	DefaultTopK         = 2
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMaxDepth     = 50
)

// Settings is the full service configuration.
type Settings struct {
	Server    ServerSettings   `toml:"server"`
	Drive     DriveSettings    `toml:"drive"`
	Embedding ProviderSettings `toml:"embedding"`
	LLM       ProviderSettings `toml:"llm"`
	Vector    VectorSettings   `toml:"vector"`
	Pipeline  PipelineSettings `toml:"pipeline"`
	History   HistorySettings  `toml:"history"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Addr string `toml:"addr"`
}

// DriveSettings configures the Google Drive client.
type DriveSettings struct {
	// CredentialsFile points to an OAuth2 client credentials JSON file.
	CredentialsFile string `toml:"credentials_file"`

	// TokenFile points to a stored OAuth2 token JSON file.
	TokenFile string `toml:"token_file"`

	// QPS caps Drive API calls per second.
	QPS int `toml:"qps"`
}

// ProviderSettings configures an AI provider (embedding or LLM).
type ProviderSettings struct {
	// Provider selects the backend: "openai" or "ollama".
	Provider string `toml:"provider"`

	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`

	// Dimensions overrides the embedding vector size (embedding only).
	Dimensions int `toml:"dimensions"`

	// MaxTokens caps generation length (LLM only).
	MaxTokens int `toml:"max_tokens"`
}

// VectorSettings configures the vector index backend.
type VectorSettings struct {
	// Provider selects the backend: "memory" or "qdrant".
	Provider string `toml:"provider"`

	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// PipelineSettings tunes the answering pipeline.
type PipelineSettings struct {
	// Strict makes any per-document failure abort the request. When
	// false, failed documents are skipped and reported as warnings.
	Strict bool `toml:"strict"`

	TopK                int `toml:"top_k"`
	ChunkSize           int `toml:"chunk_size"`
	ChunkOverlap        int `toml:"chunk_overlap"`
	MaxDepth            int `toml:"max_depth"`
	DownloadConcurrency int `toml:"download_concurrency"`
	EmbedBatchSize      int `toml:"embed_batch_size"`
	RetryAttempts       int `toml:"retry_attempts"`
}

// HistorySettings configures answer history persistence.
type HistorySettings struct {
	Enabled bool   `toml:"enabled"`
	DataDir string `toml:"data_dir"`
}

// Load reads settings from the given TOML file, then applies environment
// overrides. A missing file yields defaults. An empty path checks
// ./driveanswer.toml, then ~/.driveanswer/config.toml.
func Load(path string) (*Settings, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	if path == "" {
		path = "driveanswer.toml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if home, herr := os.UserHomeDir(); herr == nil {
				path = filepath.Join(home, ".driveanswer", "config.toml")
			}
		}
	}

	s := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(s)
	fillZero(s)
	return s, nil
}

// defaults returns a Settings with baseline values.
func defaults() *Settings {
	return &Settings{
		Server: ServerSettings{Addr: DefaultAddr},
		Embedding: ProviderSettings{
			Provider: "openai",
		},
		LLM: ProviderSettings{
			Provider: "openai",
		},
		Vector: VectorSettings{
			Provider: "memory",
		},
		Pipeline: PipelineSettings{
			TopK:         DefaultTopK,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			MaxDepth:     DefaultMaxDepth,
		},
		History: HistorySettings{Enabled: true},
	}
}

// applyEnv overrides settings from environment variables.
func applyEnv(s *Settings) {
	setString(&s.Server.Addr, "DRIVEANSWER_ADDR")

	setString(&s.Drive.CredentialsFile, "DRIVEANSWER_DRIVE_CREDENTIALS")
	setString(&s.Drive.TokenFile, "DRIVEANSWER_DRIVE_TOKEN")

	setString(&s.Embedding.Provider, "DRIVEANSWER_EMBEDDING_PROVIDER")
	setString(&s.Embedding.BaseURL, "DRIVEANSWER_EMBEDDING_BASE_URL")
	setString(&s.Embedding.Model, "DRIVEANSWER_EMBEDDING_MODEL")
	setString(&s.Embedding.APIKey, "DRIVEANSWER_EMBEDDING_API_KEY")

	setString(&s.LLM.Provider, "DRIVEANSWER_LLM_PROVIDER")
	setString(&s.LLM.BaseURL, "DRIVEANSWER_LLM_BASE_URL")
	setString(&s.LLM.Model, "DRIVEANSWER_LLM_MODEL")
	setString(&s.LLM.APIKey, "DRIVEANSWER_LLM_API_KEY")

	setString(&s.Vector.Provider, "DRIVEANSWER_VECTOR_PROVIDER")
	setString(&s.Vector.BaseURL, "DRIVEANSWER_VECTOR_BASE_URL")
	setString(&s.Vector.APIKey, "DRIVEANSWER_VECTOR_API_KEY")

	setInt(&s.Pipeline.TopK, "DRIVEANSWER_TOP_K")
	setBool(&s.Pipeline.Strict, "DRIVEANSWER_STRICT")

	// OPENAI_API_KEY is the conventional variable; use it as a fallback
	// for any openai provider without an explicit key.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if s.Embedding.Provider == "openai" && s.Embedding.APIKey == "" {
			s.Embedding.APIKey = key
		}
		if s.LLM.Provider == "openai" && s.LLM.APIKey == "" {
			s.LLM.APIKey = key
		}
	}
}

// fillZero restores defaults that a config file set to zero values.
func fillZero(s *Settings) {
	if s.Server.Addr == "" {
		s.Server.Addr = DefaultAddr
	}
	if s.Pipeline.TopK <= 0 {
		s.Pipeline.TopK = DefaultTopK
	}
	if s.Pipeline.ChunkSize <= 0 {
		s.Pipeline.ChunkSize = DefaultChunkSize
	}
	if s.Pipeline.ChunkOverlap < 0 {
		s.Pipeline.ChunkOverlap = DefaultChunkOverlap
	}
	if s.Pipeline.MaxDepth <= 0 {
		s.Pipeline.MaxDepth = DefaultMaxDepth
	}
	if s.Vector.Provider == "" {
		s.Vector.Provider = "memory"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
