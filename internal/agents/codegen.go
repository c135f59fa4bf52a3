package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/llmutil"
)

// CodeGen writes the conjugator library and its UI.
type CodeGen struct {
	stage
	store  schemas.ArtifactStore
	layout Layout
}

func NewCodeGen(gen Generator, busClient *bus.Client, store schemas.ArtifactStore, layout Layout, logger *zap.Logger) *CodeGen {
	return &CodeGen{
		stage:  newStage("CodeGen", schemas.RoleCodeGen, gen, busClient, logger),
		store:  store,
		layout: layout,
	}
}

// Run generates both files and persists them. If either generation fails the
// stage falls back to DefaultCode, which is persisted as well. The returned
// error is non-nil only when persistence fails.
func (c *CodeGen) Run(ctx context.Context, spec schemas.RequirementSpec, design schemas.DesignSpec) (Outcome[[]schemas.GeneratedCode], error) {
	c.notify(schemas.CodeGenerationStarted{})

	outcome := Outcome[[]schemas.GeneratedCode]{}
	files, response, err := c.generateFiles(ctx, spec, design)
	if err != nil {
		c.degrade(err, response)
		outcome = Outcome[[]schemas.GeneratedCode]{Artifact: DefaultCode(), Degraded: true, Cause: err}
	} else {
		outcome.Artifact = files
	}

	names := make([]string, 0, len(outcome.Artifact))
	for _, gc := range outcome.Artifact {
		if err := c.store.WriteText(ctx, c.layout.CodePath(gc.Filename), gc.Code); err != nil {
			return outcome, err
		}
		names = append(names, gc.Filename)
	}

	c.logger.Info("Code generation completed", zap.Strings("files", names), zap.Bool("degraded", outcome.Degraded))
	c.notify(schemas.CodeGenerationCompleted{Files: names})
	return outcome, nil
}

// generateFiles returns the last raw response alongside any error for logging.
func (c *CodeGen) generateFiles(ctx context.Context, spec schemas.RequirementSpec, design schemas.DesignSpec) ([]schemas.GeneratedCode, string, error) {
	steps := []struct {
		prompt string
		build  func(string) schemas.GeneratedCode
	}{
		{conjugatorPrompt(spec, design), conjugatorFile},
		{uiPrompt(spec), uiFile},
	}

	files := make([]schemas.GeneratedCode, 0, len(steps))
	for _, step := range steps {
		placeholder := step.build("")
		response, err := c.generate(ctx, string(schemas.RoleCodeGen)+"/"+placeholder.Filename, step.prompt, schemas.GenerationOptions{
			Tier: schemas.TierPowerful,
		})
		if err != nil {
			return nil, response, err
		}
		gc := step.build(llmutil.StripCodeFence(response))
		if err := gc.Validate(); err != nil {
			return nil, response, fmt.Errorf("interpret %s: %w", gc.Filename, err)
		}
		files = append(files, gc)
	}
	return files, "", nil
}
