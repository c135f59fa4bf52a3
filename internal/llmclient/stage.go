package llmclient

import "context"

type stageKey struct{}

// WithStage tags ctx with the pipeline stage issuing a generation request.
// Clients use it for logging; the fake provider uses it to pick a scripted response.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage set by WithStage, or "".
func StageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return ""
}
