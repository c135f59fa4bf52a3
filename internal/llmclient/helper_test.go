package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

// MockLLMClient is a mock implementation of the LLMClient interface for testing.
type MockLLMClient struct {
	mock.Mock
	Name string
}

// Generate mocks the Generate method.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*schemas.GenerationResult)
	return res, args.Error(1)
}

func (m *MockLLMClient) ModelFor(tier schemas.ModelTier) string {
	return m.Called(tier).String(0)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// getValidLLMConfig returns a valid LLMConfig for testing purposes.
func getValidLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:          config.ProviderGemini,
		APIKey:            "test-api-key",
		FastModel:         "gemini-flash",
		PowerfulModel:     "gemini-pro",
		APITimeout:        5 * time.Second,
		Temperature:       0.7,
		MaxTokens:         1024,
		RequestsPerSecond: 0,
		Burst:             1,
	}
}
