// Package agents implements the four pipeline stages. Each stage turns its
// input into a structured artifact through one or more model calls and falls
// back to a fixed default artifact when a call or its interpretation fails.
package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/llmclient"
	"github.com/xkilldash9x/agentforge/internal/llmutil"
)

// Generator is the model-call capability stages depend on. *tracking.Tracker implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts schemas.GenerationOptions) (string, error)
}

// Outcome is a stage's artifact. Degraded is set when the artifact is the
// stage default, with Cause holding the failure that forced it.
type Outcome[T any] struct {
	Artifact T
	Degraded bool
	Cause    error
}

// Filenames of the generated application.
const (
	ConjugatorFile = "verb_conjugator.py"
	UIFile         = "gradio_ui.py"
	TestFile       = "test_conjugator.py"
)

// stage holds what every pipeline stage shares.
type stage struct {
	name   string
	role   schemas.Role
	gen    Generator
	bus    *bus.Client
	logger *zap.Logger
}

func newStage(name string, role schemas.Role, gen Generator, busClient *bus.Client, logger *zap.Logger) stage {
	return stage{
		name:   name,
		role:   role,
		gen:    gen,
		bus:    busClient,
		logger: logger.Named("stage." + string(role)),
	}
}

// generate issues one model call tagged with key, which identifies the call
// within the pipeline (e.g. "code_gen/gradio_ui.py").
func (s *stage) generate(ctx context.Context, key, prompt string, opts schemas.GenerationOptions) (string, error) {
	return s.gen.Generate(llmclient.WithStage(ctx, key), prompt, opts)
}

func (s *stage) notify(e schemas.Event) {
	if err := s.bus.Notify(e); err != nil {
		s.logger.Debug("Could not publish event", zap.String("event", e.EventName()), zap.Error(err))
	}
}

// degrade records a stage failure: one error message to the stage's own role
// and a warning carrying the raw response.
func (s *stage) degrade(cause error, response string) {
	s.logger.Warn("Stage failed; using default artifact",
		zap.Error(cause),
		zap.String("response", llmutil.Truncate(response, 500)),
	)
	if err := s.bus.SendError(s.role, fmt.Sprintf("%s failed: %v", s.name, cause)); err != nil {
		s.logger.Debug("Could not publish stage failure", zap.Error(err))
	}
}

type validatable interface {
	Validate() error
}

// decodeArtifact parses a JSON model response over preset, whose populated
// fields act as defaults for keys the response omits, and validates the
// result. preset must not share backing storage with anything else.
func decodeArtifact[T validatable](response string, preset T) (T, error) {
	var zero T
	out := preset
	if err := llmutil.ParseJSONInto(response, &out); err != nil {
		return zero, err
	}
	if err := out.Validate(); err != nil {
		return zero, err
	}
	return out, nil
}
