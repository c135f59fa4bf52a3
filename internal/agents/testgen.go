package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/llmutil"
)

// TestGen writes a pytest module for the generated library.
type TestGen struct {
	stage
	store  schemas.ArtifactStore
	layout Layout
}

func NewTestGen(gen Generator, busClient *bus.Client, store schemas.ArtifactStore, layout Layout, logger *zap.Logger) *TestGen {
	return &TestGen{
		stage:  newStage("Test", schemas.RoleTestGen, gen, busClient, logger),
		store:  store,
		layout: layout,
	}
}

// Run generates and persists the test module, falling back to
// DefaultTestSuite. The returned error is non-nil only when persistence fails.
func (t *TestGen) Run(ctx context.Context, spec schemas.RequirementSpec, code []schemas.GeneratedCode) (Outcome[schemas.TestSuite], error) {
	t.notify(schemas.TestGenerationStarted{})

	outcome := Outcome[schemas.TestSuite]{}
	response, err := t.generate(ctx, string(schemas.RoleTestGen), testPrompt(spec, code), schemas.GenerationOptions{
		Tier: schemas.TierPowerful,
	})
	if err == nil {
		if suite := cleanTestSource(response); suite != "" {
			outcome.Artifact = schemas.TestSuite{Filename: TestFile, Code: suite}
		} else {
			err = &schemas.ValidationError{Field: "code", Reason: "generated test source is empty"}
		}
	}
	if err != nil {
		t.degrade(err, response)
		outcome = Outcome[schemas.TestSuite]{Artifact: DefaultTestSuite(), Degraded: true, Cause: err}
	}

	testPath := t.layout.TestPath(outcome.Artifact.Filename)
	if err := t.store.WriteText(ctx, testPath, outcome.Artifact.Code); err != nil {
		return outcome, err
	}

	t.logger.Info("Test generation completed", zap.String("path", testPath), zap.Bool("degraded", outcome.Degraded))
	t.notify(schemas.TestGenerationCompleted{TestFile: testPath})
	return outcome, nil
}

// cleanTestSource strips fences and makes sure pytest is imported.
func cleanTestSource(response string) string {
	code := llmutil.StripCodeFence(response)
	if code == "" {
		return ""
	}
	if !strings.Contains(code, "import pytest") {
		code = "import pytest\n" + code
	}
	return code
}
