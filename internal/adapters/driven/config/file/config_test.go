package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driveanswer.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, s.Server.Addr)
	assert.Equal(t, DefaultTopK, s.Pipeline.TopK)
	assert.Equal(t, DefaultChunkSize, s.Pipeline.ChunkSize)
	assert.Equal(t, DefaultMaxDepth, s.Pipeline.MaxDepth)
	assert.Equal(t, "memory", s.Vector.Provider)
	assert.False(t, s.Pipeline.Strict)
	assert.True(t, s.History.Enabled)
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"

[embedding]
provider = "ollama"
model = "nomic-embed-text"

[llm]
provider = "ollama"
model = "llama3.2"

[vector]
provider = "qdrant"
base_url = "http://qdrant:6333"

[pipeline]
strict = true
top_k = 5
chunk_size = 800
chunk_overlap = 100
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", s.Server.Addr)
	assert.Equal(t, "ollama", s.Embedding.Provider)
	assert.Equal(t, "qdrant", s.Vector.Provider)
	assert.Equal(t, "http://qdrant:6333", s.Vector.BaseURL)
	assert.True(t, s.Pipeline.Strict)
	assert.Equal(t, 5, s.Pipeline.TopK)
	assert.Equal(t, 800, s.Pipeline.ChunkSize)
	assert.Equal(t, 100, s.Pipeline.ChunkOverlap)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"

[pipeline]
top_k = 5
`)

	t.Setenv("DRIVEANSWER_ADDR", ":7070")
	t.Setenv("DRIVEANSWER_TOP_K", "3")
	t.Setenv("DRIVEANSWER_STRICT", "true")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", s.Server.Addr)
	assert.Equal(t, 3, s.Pipeline.TopK)
	assert.True(t, s.Pipeline.Strict)
}

func TestLoadOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	s, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", s.Embedding.APIKey)
	assert.Equal(t, "sk-test", s.LLM.APIKey)
}

func TestLoadOpenAIKeyDoesNotOverrideExplicit(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "openai"
api_key = "sk-explicit"
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", s.LLM.APIKey)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	_, err := Load(path)
	require.Error(t, err)
}
