package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

// NewClient creates the tier router for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		fast, err := NewGeminiClient(ctx, cfg, cfg.FastModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create fast tier client: %w", err)
		}
		powerful, err := NewGeminiClient(ctx, cfg, cfg.PowerfulModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
		}
		return NewLLMRouter(logger, fast, powerful)
	case config.ProviderFake:
		var script map[string]string
		if cfg.FakeScriptPath != "" {
			s, err := LoadFakeScript(cfg.FakeScriptPath)
			if err != nil {
				return nil, err
			}
			script = s
		}
		fake := NewFakeClient(logger, script)
		return NewLLMRouter(logger, fake, fake)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderGemini, config.ProviderFake)
	}
}
