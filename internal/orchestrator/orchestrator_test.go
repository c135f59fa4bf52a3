// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/agents"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/llmclient"
	"github.com/xkilldash9x/agentforge/internal/storage"
	"github.com/xkilldash9x/agentforge/internal/tracking"
)

// -- Test Doubles --

type recordingLedger struct {
	mu   sync.Mutex
	runs []schemas.RunRecord
}

func (l *recordingLedger) RecordRun(_ context.Context, rec schemas.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, rec)
	return nil
}

func (l *recordingLedger) ListRuns(context.Context, int) ([]schemas.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]schemas.RunRecord(nil), l.runs...), nil
}

func (l *recordingLedger) Close() error { return nil }

// gatedClient blocks code generation until the gate opens.
type gatedClient struct {
	schemas.LLMClient
	gate chan struct{}
}

func (g *gatedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if strings.HasPrefix(llmclient.StageFrom(ctx), "code_gen") {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.LLMClient.Generate(ctx, req)
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) WriteText(_ context.Context, p, _ string) error {
	return &schemas.StorageError{Op: "write", Path: p, Err: errors.New("read-only file system")}
}

type harness struct {
	controller *Controller
	bus        *bus.MessageBus
	tracker    *tracking.Tracker
	store      schemas.ArtifactStore
	ledger     *recordingLedger
	layout     agents.Layout
}

type harnessOption func(*Dependencies, *schemas.LLMClient)

func withScript(script map[string]string) harnessOption {
	return func(_ *Dependencies, c *schemas.LLMClient) {
		*c = llmclient.NewFakeClient(zap.NewNop(), script)
	}
}

func withClient(wrap func(schemas.LLMClient) schemas.LLMClient) harnessOption {
	return func(_ *Dependencies, c *schemas.LLMClient) { *c = wrap(*c) }
}

func withStore(store schemas.ArtifactStore) harnessOption {
	return func(d *Dependencies, _ *schemas.LLMClient) { d.Store = store }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := bus.NewMessageBus(logger)
	layout := agents.LayoutFromConfig(config.OutputConfig{BaseDir: "generated", CodeDir: "conjugator", TestsDir: "tests", UsageReport: "usage_report.json"})
	ledger := &recordingLedger{}

	deps := Dependencies{
		Bus:      b,
		Store:    storage.NewMemoryStore(),
		Ledger:   ledger,
		Layout:   layout,
		Pipeline: config.PipelineConfig{ProgressBuffer: 64, TickInterval: time.Millisecond, StageTimeout: 5 * time.Second},
		Logger:   logger,
	}
	var client schemas.LLMClient = llmclient.NewFakeClient(logger, nil)
	for _, opt := range opts {
		opt(&deps, &client)
	}

	trackingClient, err := bus.NewClient(b, schemas.RoleTracking)
	require.NoError(t, err)
	deps.Tracker = tracking.NewTracker(client, trackingClient, logger)

	controller, err := NewController(deps)
	require.NoError(t, err)
	return &harness{controller: controller, bus: b, tracker: deps.Tracker, store: deps.Store, ledger: ledger, layout: layout}
}

func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(10 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("progress stream did not close")
		}
	}
}

func progressOf(updates []Update) []int {
	out := make([]int, len(updates))
	for i, u := range updates {
		out[i] = u.Progress
	}
	return out
}

// -- Test Cases --

func TestNewController_NilDependencies(t *testing.T) {
	_, err := NewController(Dependencies{})
	assert.ErrorContains(t, err, "nil dependencies")
}

func TestGenerateApplication_WellFormed(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)

	updates := collect(t, h.controller.GenerateApplication(context.Background(), "Conjugate English and French verbs"))
	require.NotEmpty(t, updates)

	final := updates[len(updates)-1]
	require.NoError(t, final.Err)
	assert.Equal(t, ProgressDone, final.Progress)
	assert.True(t, final.Done)
	assert.Empty(t, final.Degraded)
	assert.Equal(t, "Generation complete!", final.Status)

	require.NotNil(t, final.Spec)
	assert.Equal(t, []string{"English", "French"}, final.Spec.Languages)
	require.NotNil(t, final.Design)
	assert.NotEmpty(t, final.Design.Architecture)
	require.Len(t, final.Files, 2)
	assert.True(t, strings.HasPrefix(final.Code, "# verb_conjugator.py\n"), final.Code)
	assert.Contains(t, final.Code, "\n\n# gradio_ui.py\n")
	assert.Contains(t, final.Tests, "import pytest")
	assert.Equal(t, "generated/tests/test_conjugator.py", final.TestPath)
	assert.Contains(t, final.UsageReport, `"numApiCalls": 5`)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 5, final.Usage.Usage[llmclient.FakeModel].NumAPICalls)
	assert.Contains(t, final.Instructions, "Supported Languages: English, French")

	// Checkpoints arrive in order and never go backwards.
	progress := progressOf(updates)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress must be monotonic: %v", progress)
	}
	for _, checkpoint := range []int{ProgressParse, ProgressDesign, ProgressCodeGen, ProgressFinalize, ProgressTests, ProgressUsage, ProgressDone} {
		assert.Contains(t, progress, checkpoint)
	}
	for _, u := range updates[:len(updates)-1] {
		assert.Nil(t, u.Spec, "intermediate updates carry no artifacts")
		assert.Equal(t, final.RunID, u.RunID)
	}

	require.Len(t, h.ledger.runs, 1)
	rec := h.ledger.runs[0]
	assert.Equal(t, final.RunID, rec.ID)
	assert.Equal(t, schemas.RunSucceeded, rec.Status)
	assert.Equal(t, final.Usage.TotalTokens, rec.TotalTokens)

	for _, role := range h.bus.Roles() {
		assert.Zero(t, h.bus.Pending(role), "mailbox %s drained after the run", role)
	}
}

func TestGenerateApplication_MalformedParserResponse(t *testing.T) {
	defer goleak.VerifyNone(t)
	script := llmclient.DefaultFakeScript()
	script["parser"] = "Sorry, I can only answer in prose."
	h := newHarness(t, withScript(script))

	updates := collect(t, h.controller.GenerateApplication(context.Background(), "verbs please"))
	final := updates[len(updates)-1]

	require.NoError(t, final.Err)
	assert.Equal(t, ProgressDone, final.Progress)
	assert.Equal(t, []schemas.Role{schemas.RoleParser}, final.Degraded)
	assert.Equal(t, agents.DefaultRequirements("verbs please"), *final.Spec)
	assert.NotEmpty(t, final.Code)
	assert.NotEmpty(t, final.Tests)
	assert.Contains(t, final.Status, "defaults for: parser")

	var parserErrors int
	for _, msg := range h.bus.History() {
		if msg.Kind() == schemas.KindError && msg.Receiver() == schemas.RoleParser {
			parserErrors++
		}
	}
	assert.Equal(t, 1, parserErrors)
	assert.Equal(t, []schemas.Role{schemas.RoleParser}, h.ledger.runs[0].DegradedStages)
}

func TestGenerateApplication_StorageFailureAborts(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, withStore(failingStore{storage.NewMemoryStore()}))

	updates := collect(t, h.controller.GenerateApplication(context.Background(), "anything"))
	final := updates[len(updates)-1]

	assert.Equal(t, 0, final.Progress)
	assert.True(t, final.Done)
	assert.ErrorIs(t, final.Err, schemas.ErrStorage)
	assert.True(t, strings.HasPrefix(final.Status, "Error: "), final.Status)
	assert.Nil(t, final.Spec)
	assert.Empty(t, final.Code)
	assert.Empty(t, final.Tests)
	assert.Empty(t, final.UsageReport)
	assert.Empty(t, final.Instructions)

	require.Len(t, h.ledger.runs, 1)
	assert.Equal(t, schemas.RunFailed, h.ledger.runs[0].Status)
	assert.Contains(t, h.ledger.runs[0].Error, "read-only file system")
}

func TestGenerateApplication_TicksWhileGeneratingCode(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := make(chan struct{})
	h := newHarness(t, withClient(func(c schemas.LLMClient) schemas.LLMClient {
		return &gatedClient{LLMClient: c, gate: gate}
	}))

	stream := h.controller.GenerateApplication(context.Background(), "verbs")
	var updates []Update
	opened := false
	for u := range stream {
		updates = append(updates, u)
		if !opened && u.Progress > ProgressCodeGen && u.Progress < ProgressFinalize {
			close(gate)
			opened = true
		}
	}
	require.True(t, opened, "expected at least one tick between checkpoints")

	final := updates[len(updates)-1]
	assert.Equal(t, ProgressDone, final.Progress)
	for _, u := range updates {
		if u.Status == "Generating code... (working)" {
			assert.Greater(t, u.Progress, ProgressCodeGen)
			assert.LessOrEqual(t, u.Progress, ProgressMaxTick)
		}
	}
}

func TestGenerateApplication_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := make(chan struct{})
	h := newHarness(t, withClient(func(c schemas.LLMClient) schemas.LLMClient {
		return &gatedClient{LLMClient: c, gate: gate}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := h.controller.GenerateApplication(ctx, "verbs")
	var final Update
	for u := range stream {
		if u.Progress == ProgressCodeGen {
			cancel()
		}
		final = u
	}

	assert.Equal(t, 0, final.Progress)
	assert.ErrorIs(t, final.Err, context.Canceled)
	assert.Equal(t, schemas.RunFailed, h.ledger.runs[0].Status)
}

func TestGenerateApplication_RunsAreSerialized(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := make(chan struct{})
	h := newHarness(t, withClient(func(c schemas.LLMClient) schemas.LLMClient {
		return &gatedClient{LLMClient: c, gate: gate}
	}))

	first := h.controller.GenerateApplication(context.Background(), "first")
	// Wait until the first run holds the controller.
	for u := range first {
		if u.Progress == ProgressCodeGen {
			break
		}
	}
	assert.True(t, h.controller.Busy())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := collect(t, h.controller.GenerateApplication(ctx, "second"))
	require.Len(t, second, 1)
	assert.ErrorContains(t, second[0].Err, "run not started")

	close(gate)
	rest := collect(t, first)
	assert.Equal(t, ProgressDone, rest[len(rest)-1].Progress)
}

func TestTryStart_RejectsWhileActive(t *testing.T) {
	defer goleak.VerifyNone(t)
	gate := make(chan struct{})
	h := newHarness(t, withClient(func(c schemas.LLMClient) schemas.LLMClient {
		return &gatedClient{LLMClient: c, gate: gate}
	}))

	first, ok := h.controller.TryStart(context.Background(), "run-1", "first")
	require.True(t, ok)
	// The slot is held as soon as TryStart returns.
	assert.True(t, h.controller.Busy())

	second, ok := h.controller.TryStart(context.Background(), "run-2", "second")
	assert.False(t, ok)
	assert.Nil(t, second)

	close(gate)
	updates := collect(t, first)
	final := updates[len(updates)-1]
	assert.Equal(t, "run-1", final.RunID)
	assert.Equal(t, ProgressDone, final.Progress)
	assert.False(t, h.controller.Busy())

	third, ok := h.controller.TryStart(context.Background(), "run-3", "third")
	require.True(t, ok)
	rest := collect(t, third)
	assert.Equal(t, ProgressDone, rest[len(rest)-1].Progress)
}

func TestBuildBundle(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	updates := collect(t, h.controller.GenerateApplication(context.Background(), "verbs"))
	final := updates[len(updates)-1]

	data, err := BuildBundle(final, h.layout)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(body)
	}

	assert.ElementsMatch(t, []string{
		"generated/conjugator/verb_conjugator.py",
		"generated/conjugator/gradio_ui.py",
		"generated/tests/test_conjugator.py",
		"usage_report.json",
		"README.md",
	}, keys(contents))
	assert.Equal(t, final.Tests, contents["generated/tests/test_conjugator.py"])
	assert.Equal(t, final.UsageReport, contents["usage_report.json"])

	_, err = BuildBundle(Update{RunID: "r1", Done: true, Err: errors.New("boom")}, h.layout)
	assert.ErrorContains(t, err, "no completed artifacts")
}

func TestInstructions(t *testing.T) {
	layout := agents.Layout{CodeDir: "out/conjugator", TestsDir: "out/tests"}
	got := Instructions(agents.DefaultRequirements("x"), layout)

	assert.Contains(t, got, "pip install mlconjug3 gradio pytest")
	assert.Contains(t, got, "cd out/conjugator\npython gradio_ui.py")
	assert.Contains(t, got, "cd out/tests\npytest test_conjugator.py -v")
	assert.Contains(t, got, "Supported Tenses: present, past, future")
	assert.Contains(t, got, "Handles Irregular Verbs: true")
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
