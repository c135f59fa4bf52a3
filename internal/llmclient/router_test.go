package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// -- Test Setup Helper --

// setupRouter creates a standard LLMRouter instance for testing, along with its mocks and a log observer.
func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &MockLLMClient{Name: "FastClient"}
	powerfulClient := &MockLLMClient{Name: "PowerfulClient"}

	router, err := NewLLMRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err, "NewLLMRouter should initialize successfully")

	return router, fastClient, powerfulClient, observedLogs
}

func fastRequest(prompt string) schemas.GenerationRequest {
	return schemas.GenerationRequest{UserPrompt: prompt, Options: schemas.GenerationOptions{Tier: schemas.TierFast}}
}

// -- Test Cases: Initialization --

func TestNewLLMRouter_Success(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	require.NotNil(t, router)
	assert.Equal(t, fastClient, router.clients[schemas.TierFast])
	assert.Equal(t, powerfulClient, router.clients[schemas.TierPowerful])
}

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	logger := setupTestLogger(t)
	validClient := new(MockLLMClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(logger, tt.fast, tt.powerful)
			assert.Nil(t, router)
			assert.ErrorContains(t, err, "both fast and powerful tier clients must be provided")
		})
	}
}

// -- Test Cases: Routing --

func TestGenerate_Routing_TierFast(t *testing.T) {
	router, fastClient, powerfulClient, observedLogs := setupRouter(t)
	ctx := WithStage(context.Background(), "parser")
	req := fastRequest("test fast prompt")
	expected := &schemas.GenerationResult{Text: "response from fast client", Model: "flash"}

	fastClient.On("Generate", ctx, req).Return(expected, nil).Once()

	result, err := router.Generate(ctx, req)

	require.NoError(t, err)
	assert.Same(t, expected, result)
	fastClient.AssertExpectations(t)
	powerfulClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	require.Equal(t, 1, observedLogs.Len(), "Expected one log entry for routing")
	logEntry := observedLogs.All()[0]
	assert.Equal(t, "Routing LLM request", logEntry.Message)
	assert.Equal(t, string(schemas.TierFast), logEntry.ContextMap()["tier"])
	assert.Equal(t, "parser", logEntry.ContextMap()["stage"])
}

func TestGenerate_Routing_Default(t *testing.T) {
	router, fastClient, powerfulClient, observedLogs := setupRouter(t)
	ctx := context.Background()
	// The request reaches the client unchanged; the tier is only defaulted for routing.
	req := schemas.GenerationRequest{UserPrompt: "test default prompt"}
	expected := &schemas.GenerationResult{Text: "from powerful"}

	powerfulClient.On("Generate", ctx, req).Return(expected, nil).Once()

	result, err := router.Generate(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, "from powerful", result.Text)
	powerfulClient.AssertExpectations(t)
	fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Equal(t, string(schemas.TierPowerful), observedLogs.All()[0].ContextMap()["tier"])
}

func TestGenerate_Error_Propagation(t *testing.T) {
	router, fastClient, _, _ := setupRouter(t)
	ctx := context.Background()
	req := fastRequest("x")
	expectedError := errors.New("underlying client API failure")

	fastClient.On("Generate", ctx, req).Return(nil, expectedError).Once()

	result, err := router.Generate(ctx, req)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, expectedError, "The exact error from the client should be propagated")
}

func TestGenerate_Error_InvalidTier(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)
	req := schemas.GenerationRequest{Options: schemas.GenerationOptions{Tier: "invalid-tier-xyz"}}

	result, err := router.Generate(context.Background(), req)

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "no LLM client configured for tier: invalid-tier-xyz")
	fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	powerfulClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestModelFor(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)
	fastClient.On("ModelFor", schemas.TierFast).Return("flash")
	powerfulClient.On("ModelFor", schemas.TierPowerful).Return("pro")

	assert.Equal(t, "flash", router.ModelFor(schemas.TierFast))
	assert.Equal(t, "pro", router.ModelFor(schemas.TierPowerful))
	assert.Equal(t, "pro", router.ModelFor(""), "empty tier defaults to powerful")
	assert.Equal(t, "", router.ModelFor("unknown"))
}

func TestClose(t *testing.T) {
	t.Run("closes each client once", func(t *testing.T) {
		shared := &MockLLMClient{}
		shared.On("Close").Return(nil).Once()
		router, err := NewLLMRouter(setupTestLogger(t), shared, shared)
		require.NoError(t, err)

		require.NoError(t, router.Close())
		shared.AssertExpectations(t)
	})

	t.Run("joins errors", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		boom := errors.New("boom")
		fastClient.On("Close").Return(boom)
		powerfulClient.On("Close").Return(nil)

		assert.ErrorIs(t, router.Close(), boom)
	})
}
