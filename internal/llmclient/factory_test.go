package llmclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

func TestNewClient_Gemini(t *testing.T) {
	client, err := NewClient(context.Background(), getValidLLMConfig(), setupTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	router, ok := client.(*LLMRouter)
	require.True(t, ok, "The created client should be of type *LLMRouter")

	fast, ok := router.clients[schemas.TierFast].(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "gemini-flash", fast.model)
	powerful, ok := router.clients[schemas.TierPowerful].(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "gemini-pro", powerful.model)

	assert.Equal(t, "gemini-flash", client.ModelFor(schemas.TierFast))
}

func TestNewClient_GeminiMissingKey(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.APIKey = ""
	_, err := NewClient(context.Background(), cfg, setupTestLogger(t))
	assert.ErrorContains(t, err, "failed to create fast tier client")
}

func TestNewClient_Fake(t *testing.T) {
	cfg := config.LLMConfig{Provider: config.ProviderFake}
	client, err := NewClient(context.Background(), cfg, setupTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, FakeModel, client.ModelFor(schemas.TierPowerful))

	res, err := client.Generate(WithStage(context.Background(), "design"), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "architecture")
}

func TestNewClient_FakeScriptPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"*":"scripted"}`), 0o600))

	client, err := NewClient(context.Background(), config.LLMConfig{Provider: config.ProviderFake, FakeScriptPath: path}, setupTestLogger(t))
	require.NoError(t, err)
	res, err := client.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "scripted", res.Text)

	_, err = NewClient(context.Background(), config.LLMConfig{Provider: config.ProviderFake, FakeScriptPath: path + ".missing"}, setupTestLogger(t))
	assert.Error(t, err)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "openai"}, setupTestLogger(t))
	assert.ErrorContains(t, err, "unknown or unsupported LLM provider configured: 'openai'")
}
