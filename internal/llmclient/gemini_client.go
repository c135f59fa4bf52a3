// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

// contentGenerator is the slice of the genai SDK the client uses. *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements schemas.LLMClient for Google Gemini through the genai SDK.
// It makes exactly one SDK call per Generate; retry policy belongs to callers.
type GeminiClient struct {
	models  contentGenerator
	model   string
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGeminiClient initializes a client serving a single model.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GOOGLE_API_KEY or llm.api_key)")
	}
	if model == "" {
		return nil, fmt.Errorf("Gemini model name is required")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiClient(cli.Models, cfg, model, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMConfig, model string, logger *zap.Logger) *GeminiClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &GeminiClient{
		models:  models,
		model:   model,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("llm_client.gemini").With(zap.String("model", model)),
	}
}

// ModelFor returns the single model this client serves.
func (c *GeminiClient) ModelFor(schemas.ModelTier) string { return c.model }

// Generate sends the prompts to Gemini and returns the text with usage metadata.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	startTime := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.UserPrompt}}}},
		c.buildConfig(req),
	)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("Gemini request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		reason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return nil, fmt.Errorf("gemini returned no text (finish reason: %s)", reason)
	}

	result := &schemas.GenerationResult{Text: text, Model: c.model}
	if um := resp.UsageMetadata; um != nil {
		result.Usage = &schemas.UsageMetadata{
			PromptTokens:   int(um.PromptTokenCount),
			ResponseTokens: int(um.CandidatesTokenCount),
		}
		c.logger.Info("LLM generation complete (Gemini)",
			zap.Duration("duration", duration),
			zap.Int32("prompt_tokens", um.PromptTokenCount),
			zap.Int32("completion_tokens", um.CandidatesTokenCount),
			zap.Int32("total_tokens", um.TotalTokenCount),
		)
	} else {
		c.logger.Info("LLM generation complete (Gemini)", zap.Duration("duration", duration))
	}
	return result, nil
}

func (c *GeminiClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temperature := c.cfg.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if req.Options.MaxOutputTokens > 0 {
		maxTokens = req.Options.MaxOutputTokens
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (c *GeminiClient) Close() error { return nil }
