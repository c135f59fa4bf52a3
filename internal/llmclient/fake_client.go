package llmclient

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// FakeModel is the model name the fake provider reports.
const FakeModel = "fake-llm"

// fallbackKey matches any stage without a more specific entry.
const fallbackKey = "*"

// FakeClient returns deterministic scripted responses keyed by pipeline stage,
// for offline runs and tests. It never reports usage metadata.
type FakeClient struct {
	logger *zap.Logger
	script map[string]string

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeClient builds a fake client over script. A nil script uses DefaultFakeScript.
func NewFakeClient(logger *zap.Logger, script map[string]string) *FakeClient {
	if script == nil {
		script = DefaultFakeScript()
	}
	return &FakeClient{
		logger: logger.Named("llm_client.fake"),
		script: script,
		calls:  make(map[string]int),
	}
}

// LoadFakeScript reads a JSON object of stage -> response text.
func LoadFakeScript(path string) (map[string]string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand fake script path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read fake script: %w", err)
	}
	var script map[string]string
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse fake script %s: %w", expanded, err)
	}
	return script, nil
}

// lookup tries the exact stage, then its family ("code_gen" for
// "code_gen/gradio_ui.py"), then the fallback entry.
func (f *FakeClient) lookup(stage string) (string, bool) {
	if r, ok := f.script[stage]; ok {
		return r, true
	}
	if family, _, found := strings.Cut(stage, "/"); found {
		if r, ok := f.script[family]; ok {
			return r, true
		}
	}
	r, ok := f.script[fallbackKey]
	return r, ok
}

func (f *FakeClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stage := StageFrom(ctx)

	f.mu.Lock()
	f.calls[stage]++
	f.mu.Unlock()

	text, ok := f.lookup(stage)
	if !ok {
		return nil, fmt.Errorf("fake llm: no scripted response for stage %q", stage)
	}
	f.logger.Debug("Serving scripted response", zap.String("stage", stage), zap.Int("length", len(text)))
	return &schemas.GenerationResult{Text: text, Model: FakeModel}, nil
}

// Calls reports how many requests were served for stage.
func (f *FakeClient) Calls(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *FakeClient) ModelFor(schemas.ModelTier) string { return FakeModel }

func (f *FakeClient) Close() error { return nil }

// DefaultFakeScript returns well-formed responses for every pipeline stage.
func DefaultFakeScript() map[string]string {
	return map[string]string{
		"parser": "```json\n" + `{
  "languages": ["English", "French"],
  "tenses": ["present", "past", "future"],
  "persons": ["first person singular", "second person singular", "third person singular"],
  "moods": ["indicative"],
  "handle_irregular": true,
  "dataset_sources": [],
  "additional_requirements": "Offer a simple web form."
}` + "\n```",
		"design": `{
  "architecture": "Dictionary-backed conjugator behind a Gradio form",
  "modules": ["verb_conjugator", "gradio_ui"],
  "data_schema": {"verbs": "dict", "conjugations": "dict"},
  "dependencies": ["mlconjug3", "gradio"],
  "implementation_notes": "Wrap mlconjug3 and cache conjugators per language."
}`,
		"code_gen/verb_conjugator.py": "```python\n" + `import mlconjug3

_CONJUGATORS = {}


def conjugate(verb, language="en"):
    conj = _CONJUGATORS.setdefault(language, mlconjug3.Conjugator(language=language))
    return conj.conjugate(verb).iterate()
` + "```",
		"code_gen/gradio_ui.py": "```python\n" + `import gradio as gr

from verb_conjugator import conjugate


def run(verb, language):
    return "\n".join(" ".join(str(p) for p in row) for row in conjugate(verb, language))


if __name__ == "__main__":
    gr.Interface(fn=run, inputs=["text", "text"], outputs="text").launch()
` + "```",
		"test_gen": "```python\n" + `from verb_conjugator import conjugate


def test_conjugate_returns_rows():
    assert list(conjugate("be", "en"))
` + "```",
	}
}
