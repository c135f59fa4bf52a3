// Package tracking wraps the generation client and accounts for every call it makes.
package tracking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
)

// Tracker is the single choke point for model calls. Every Generate counts as
// one API call against the model that served it; only successful calls add tokens.
type Tracker struct {
	client schemas.LLMClient
	bus    *bus.Client
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]*schemas.UsageStats
}

// NewTracker creates a tracker over client. busClient may be nil.
func NewTracker(client schemas.LLMClient, busClient *bus.Client, logger *zap.Logger) *Tracker {
	return &Tracker{
		client: client,
		bus:    busClient,
		logger: logger.Named("tracker"),
		stats:  make(map[string]*schemas.UsageStats),
	}
}

// entry returns the stats for model, creating it on first use. Caller holds t.mu.
func (t *Tracker) entry(model string) *schemas.UsageStats {
	s, ok := t.stats[model]
	if !ok {
		s = &schemas.UsageStats{}
		t.stats[model] = s
	}
	return s
}

// Generate invokes the model once and returns its text. Failures are counted
// and returned as *schemas.GenerationError; nothing is retried.
func (t *Tracker) Generate(ctx context.Context, prompt string, opts schemas.GenerationOptions) (string, error) {
	model := t.client.ModelFor(opts.Tier)

	result, err := t.client.Generate(ctx, schemas.GenerationRequest{UserPrompt: prompt, Options: opts})
	if err == nil && result == nil {
		err = fmt.Errorf("client returned no result")
	}
	if err != nil {
		t.mu.Lock()
		t.entry(model).NumAPICalls++
		t.mu.Unlock()

		t.logger.Warn("API call failed", zap.String("model", model), zap.Error(err))
		if sendErr := t.bus.SendError(schemas.RoleTracking, fmt.Sprintf("API call failed: %v", err)); sendErr != nil {
			t.logger.Debug("Could not publish API failure", zap.Error(sendErr))
		}
		return "", &schemas.GenerationError{Model: model, Err: err}
	}

	if result.Model != "" {
		model = result.Model
	}
	tokens := countTokens(prompt, result)

	t.mu.Lock()
	s := t.entry(model)
	s.NumAPICalls++
	s.TotalTokens += tokens
	t.mu.Unlock()

	t.logger.Debug("API call succeeded", zap.String("model", model), zap.Int("tokens", tokens))
	if err := t.bus.Notify(schemas.APICall{Model: model, Tokens: tokens}); err != nil {
		t.logger.Debug("Could not publish API call", zap.Error(err))
	}
	return result.Text, nil
}

// countTokens prefers the provider's usage metadata and otherwise estimates
// one token per four characters of prompt plus response.
func countTokens(prompt string, result *schemas.GenerationResult) int {
	if result.Usage != nil {
		return result.Usage.PromptTokens + result.Usage.ResponseTokens
	}
	return (utf8.RuneCountInString(prompt) + utf8.RuneCountInString(result.Text)) / 4
}

// UsageReport returns a snapshot of the accumulated usage.
func (t *Tracker) UsageReport() schemas.UsageReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := schemas.UsageReport{Usage: make(map[string]schemas.UsageStats, len(t.stats))}
	for model, s := range t.stats {
		report.Usage[model] = *s
		report.TotalTokens += s.TotalTokens
	}
	return report
}

// ResetStats zeroes every entry but keeps the model keys.
func (t *Tracker) ResetStats() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.stats {
		*s = schemas.UsageStats{}
	}
}

// SaveUsageReport writes the current report to path through store and
// announces it. Storage failures are returned as-is.
func (t *Tracker) SaveUsageReport(ctx context.Context, store schemas.ArtifactStore, path string) (schemas.UsageReport, error) {
	report := t.UsageReport()
	if err := store.WriteStructured(ctx, path, report); err != nil {
		return report, err
	}

	models := make([]string, 0, len(report.Usage))
	for m := range report.Usage {
		models = append(models, m)
	}
	sort.Strings(models)
	t.logger.Info("Usage report saved",
		zap.String("path", path),
		zap.Int("total_tokens", report.TotalTokens),
		zap.Strings("models", models),
	)
	if err := t.bus.Notify(schemas.ReportSaved{Path: path, Report: report}); err != nil {
		t.logger.Debug("Could not publish report_saved", zap.Error(err))
	}
	return report, nil
}
