// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/llmclient"
	"github.com/xkilldash9x/agentforge/internal/storage"
	"github.com/xkilldash9x/agentforge/internal/store"
)

// InitializeLLMClient creates the tiered LLM client for the configured provider.
func InitializeLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	llmClient, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	logger.Debug("LLM client initialized.", zap.String("provider", string(cfg.Provider)))
	return llmClient, nil
}

// InitializeArtifactStore opens the configured artifact store.
func InitializeArtifactStore(ctx context.Context, cfg config.StorageConfig, root string, logger *zap.Logger) (schemas.ArtifactStore, error) {
	s, err := storage.New(ctx, cfg, root, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	if cfg.Backend == config.StorageMemory {
		logger.Warn("Artifacts are kept in memory and will be lost on exit.")
	}
	return s, nil
}

// InitializeLedger opens the run ledger. A nil ledger means no database is configured.
func InitializeLedger(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (schemas.RunLedger, error) {
	ledger, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	if ledger == nil {
		logger.Debug("No database configured; run history is not recorded.")
	}
	return ledger, nil
}
