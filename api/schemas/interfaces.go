package schemas

import (
	"context"
	"time"
)

// -- LLM Interfaces --

// ModelTier allows for selecting a language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions controls a single generation call.
type GenerationOptions struct {
	Tier            ModelTier `json:"tier"`
	Temperature     *float32  `json:"temperature,omitempty"` // nil uses the model's configured value.
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
	ForceJSONFormat bool      `json:"force_json_format"`
}

// GenerationRequest is a complete request to a model.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// UsageMetadata is the token accounting a provider may return with a response.
type UsageMetadata struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
}

// GenerationResult is the text returned by a model plus optional usage data.
type GenerationResult struct {
	Text  string         `json:"text"`
	Model string         `json:"model"`
	Usage *UsageMetadata `json:"usage,omitempty"`
}

// LLMClient abstracts a text generation provider.
type LLMClient interface {
	// Generate produces a completion for the request. Implementations must not retry.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	// ModelFor names the model that would serve a request of the given tier.
	ModelFor(tier ModelTier) string
	// Close releases any resources held by the client.
	Close() error
}

// -- Storage Interface --

// ArtifactStore persists generated artifacts with whole-object overwrite
// semantics. Paths are slash separated and relative to the store's root.
type ArtifactStore interface {
	WriteText(ctx context.Context, path, content string) error
	ReadText(ctx context.Context, path string) (string, error)
	WriteStructured(ctx context.Context, path string, v any) error
}

// -- Run Ledger --

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	ID             string    `json:"id"`
	Requirements   string    `json:"requirements"`
	Status         RunStatus `json:"status"`
	DegradedStages []Role    `json:"degraded_stages"`
	TotalTokens    int       `json:"total_tokens"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// RunLedger records completed runs.
type RunLedger interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
