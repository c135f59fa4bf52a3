package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// LLMRouter implements the LLMClient interface and routes requests by tier.
type LLMRouter struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

// NewLLMRouter creates a new router with the specified clients for each tier.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

func (r *LLMRouter) resolve(tier schemas.ModelTier) (schemas.ModelTier, schemas.LLMClient, error) {
	if tier == "" {
		tier = schemas.TierPowerful // Default to the powerful tier if unspecified.
	}
	client, ok := r.clients[tier]
	if !ok {
		return tier, nil, fmt.Errorf("no LLM client configured for tier: %s", tier)
	}
	return tier, client, nil
}

// Generate selects the client for the request's tier and forwards the request unchanged.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	tier, client, err := r.resolve(req.Options.Tier)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)), zap.String("stage", StageFrom(ctx)))
	return client.Generate(ctx, req)
}

// ModelFor reports the model name the tier's client would use, or "" for an unknown tier.
func (r *LLMRouter) ModelFor(tier schemas.ModelTier) string {
	tier, client, err := r.resolve(tier)
	if err != nil {
		return ""
	}
	return client.ModelFor(tier)
}

// Close closes every distinct underlying client.
func (r *LLMRouter) Close() error {
	seen := make(map[schemas.LLMClient]struct{}, len(r.clients))
	var errs []error
	for _, c := range r.clients {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
