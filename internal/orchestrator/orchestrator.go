// File: internal/orchestrator/orchestrator.go
// Description: Sequences the pipeline stages for one run and streams progress
// to the caller. Components are injected so the controller can be tested
// against stub generators and in-memory storage.

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/agents"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/tracking"
)

// Progress checkpoints.
const (
	ProgressParse    = 10
	ProgressDesign   = 30
	ProgressCodeGen  = 50
	ProgressMaxTick  = 69
	ProgressFinalize = 70
	ProgressTests    = 75
	ProgressUsage    = 90
	ProgressDone     = 100
)

// Update is one entry of a run's progress stream. Artifact fields are set
// only on the final successful update.
type Update struct {
	RunID        string                   `json:"run_id"`
	Status       string                   `json:"status"`
	Progress     int                      `json:"progress"`
	Spec         *schemas.RequirementSpec `json:"spec,omitempty"`
	Design       *schemas.DesignSpec      `json:"design,omitempty"`
	Files        []schemas.GeneratedCode  `json:"files,omitempty"`
	Code         string                   `json:"code,omitempty"`
	Tests        string                   `json:"tests,omitempty"`
	TestPath     string                   `json:"test_path,omitempty"`
	UsageReport  string                   `json:"usage_report,omitempty"`
	Usage        *schemas.UsageReport     `json:"usage,omitempty"`
	Instructions string                   `json:"instructions,omitempty"`
	Degraded     []schemas.Role           `json:"degraded,omitempty"`
	Done         bool                     `json:"done"`
	Error        string                   `json:"error,omitempty"`
	Err          error                    `json:"-"`
}

// Dependencies are the collaborators a Controller drives.
type Dependencies struct {
	Bus     *bus.MessageBus
	Tracker *tracking.Tracker
	Store   schemas.ArtifactStore
	// Ledger is optional.
	Ledger   schemas.RunLedger
	Layout   agents.Layout
	Pipeline config.PipelineConfig
	Logger   *zap.Logger
}

// Controller runs the pipeline. Runs are serialized because every run
// writes to the same artifact paths.
type Controller struct {
	deps   Dependencies
	logger *zap.Logger
	ui     *bus.Client

	parser  *agents.Parser
	design  *agents.Design
	codegen *agents.CodeGen
	testgen *agents.TestGen

	running chan struct{}
}

// NewController wires the four stages to the bus, tracker and store.
func NewController(deps Dependencies) (*Controller, error) {
	if deps.Bus == nil || deps.Tracker == nil || deps.Store == nil || deps.Logger == nil {
		return nil, fmt.Errorf("cannot initialize controller with nil dependencies")
	}
	if deps.Pipeline.ProgressBuffer <= 0 {
		deps.Pipeline.ProgressBuffer = 16
	}
	if deps.Pipeline.TickInterval <= 0 {
		deps.Pipeline.TickInterval = 400 * time.Millisecond
	}

	clients := make(map[schemas.Role]*bus.Client)
	for _, role := range []schemas.Role{schemas.RoleParser, schemas.RoleDesign, schemas.RoleCodeGen, schemas.RoleTestGen, schemas.RoleUIGen} {
		c, err := bus.NewClient(deps.Bus, role)
		if err != nil {
			return nil, fmt.Errorf("bind %s client: %w", role, err)
		}
		clients[role] = c
	}

	logger := deps.Logger.Named("controller")
	c := &Controller{
		deps:    deps,
		logger:  logger,
		ui:      clients[schemas.RoleUIGen],
		parser:  agents.NewParser(deps.Tracker, clients[schemas.RoleParser], deps.Logger),
		design:  agents.NewDesign(deps.Tracker, clients[schemas.RoleDesign], deps.Logger),
		codegen: agents.NewCodeGen(deps.Tracker, clients[schemas.RoleCodeGen], deps.Store, deps.Layout, deps.Logger),
		testgen: agents.NewTestGen(deps.Tracker, clients[schemas.RoleTestGen], deps.Store, deps.Layout, deps.Logger),
		running: make(chan struct{}, 1),
	}

	if err := deps.Bus.RegisterHandler(schemas.RoleUIGen, c.listen); err != nil {
		return nil, err
	}
	return c, nil
}

// listen logs bus traffic that reaches the UI role while a run is active.
func (c *Controller) listen(_ context.Context, msg schemas.Message) {
	fields := []zap.Field{
		zap.String("event", msg.Payload().EventName()),
		zap.String("sender", msg.Sender().String()),
	}
	if runID, ok := msg.Metadata()["run_id"]; ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	if msg.Kind() == schemas.KindError {
		c.logger.Warn("Pipeline error reported", fields...)
		return
	}
	c.logger.Debug("Pipeline event", fields...)
}

// GenerateApplication starts a run and returns its progress stream. The
// channel is closed after the final update: progress 100 on success, or 0
// with Err set when the run could not complete.
func (c *Controller) GenerateApplication(ctx context.Context, text string) <-chan Update {
	return c.Start(ctx, uuid.NewString(), text)
}

// Start is GenerateApplication with a caller-chosen run ID. It waits for any
// active run to finish before starting.
func (c *Controller) Start(ctx context.Context, runID, text string) <-chan Update {
	updates := make(chan Update, c.deps.Pipeline.ProgressBuffer)
	go func() {
		defer close(updates)
		r := c.newRun(runID, text, updates)
		select {
		case c.running <- struct{}{}:
			defer func() { <-c.running }()
		case <-ctx.Done():
			c.fail(ctx, r, fmt.Errorf("run not started: %w", ctx.Err()))
			return
		}
		c.run(ctx, r)
	}()
	return updates
}

// TryStart starts a run only if no other run is active. The run slot is
// taken before it returns, so a false result means another run holds it.
func (c *Controller) TryStart(ctx context.Context, runID, text string) (<-chan Update, bool) {
	select {
	case c.running <- struct{}{}:
	default:
		return nil, false
	}
	updates := make(chan Update, c.deps.Pipeline.ProgressBuffer)
	go func() {
		defer close(updates)
		defer func() { <-c.running }()
		c.run(ctx, c.newRun(runID, text, updates))
	}()
	return updates, true
}

// run is the single control goroutine for one pipeline execution.
type run struct {
	id       string
	text     string
	updates  chan<- Update
	logger   *zap.Logger
	degraded []schemas.Role
}

func (c *Controller) newRun(runID, text string, updates chan<- Update) *run {
	return &run{id: runID, text: text, updates: updates, logger: observability.WithRun(c.logger, runID)}
}

// run executes one pipeline run. The caller holds the run slot.
func (c *Controller) run(ctx context.Context, r *run) {
	runID, text := r.id, r.text
	started := time.Now().UTC()
	r.logger.Info("Pipeline run started", zap.Int("input_length", len(text)))
	c.deps.Bus.ClearHistory()
	tokensBefore := c.deps.Tracker.UsageReport().TotalTokens

	listenCtx, stopListener := context.WithCancel(ctx)
	var listener sync.WaitGroup
	listener.Add(1)
	go func() {
		defer listener.Done()
		_ = c.deps.Bus.Serve(listenCtx, schemas.RoleUIGen)
	}()
	defer func() {
		stopListener()
		listener.Wait()
		c.drainMailboxes(r)
	}()

	final, err := c.execute(ctx, r)

	record := schemas.RunRecord{
		ID:             runID,
		Requirements:   text,
		DegradedStages: r.degraded,
		TotalTokens:    c.deps.Tracker.UsageReport().TotalTokens - tokensBefore,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
	}
	if err != nil {
		record.Status = schemas.RunFailed
		record.Error = err.Error()
		c.recordRun(ctx, r, record)
		c.fail(ctx, r, err)
		return
	}
	record.Status = schemas.RunSucceeded
	c.recordRun(ctx, r, record)
	r.logger.Info("Pipeline run completed",
		zap.Duration("duration", record.FinishedAt.Sub(started)),
		zap.Int("tokens", record.TotalTokens),
		zap.Int("degraded_stages", len(r.degraded)),
	)
	c.emit(ctx, r, final)
}

// execute runs the stages in order and assembles the final report. Stage
// failures degrade the run; only storage failures and cancellation abort it.
func (c *Controller) execute(ctx context.Context, r *run) (Update, error) {
	layout := c.deps.Layout

	c.checkpoint(ctx, r, ProgressParse, "Parsing requirements...")
	spec := runStage(ctx, c, r, schemas.RoleParser, func(sctx context.Context) (agents.Outcome[schemas.RequirementSpec], error) {
		return c.parser.Run(sctx, r.text), nil
	})
	if err := spec.err; err != nil {
		return Update{}, err
	}

	c.checkpoint(ctx, r, ProgressDesign, "Creating design...")
	design := runStage(ctx, c, r, schemas.RoleDesign, func(sctx context.Context) (agents.Outcome[schemas.DesignSpec], error) {
		return c.design.Run(sctx, spec.out.Artifact), nil
	})
	if err := design.err; err != nil {
		return Update{}, err
	}

	c.checkpoint(ctx, r, ProgressCodeGen, "Generating code...")
	code, err := c.generateCode(ctx, r, spec.out.Artifact, design.out.Artifact)
	if err != nil {
		return Update{}, err
	}
	c.checkpoint(ctx, r, ProgressFinalize, "Finalizing code...")

	c.checkpoint(ctx, r, ProgressTests, "Generating tests...")
	tests := runStage(ctx, c, r, schemas.RoleTestGen, func(sctx context.Context) (agents.Outcome[schemas.TestSuite], error) {
		return c.testgen.Run(sctx, spec.out.Artifact, code)
	})
	if err := tests.err; err != nil {
		return Update{}, err
	}

	c.checkpoint(ctx, r, ProgressUsage, "Saving usage report...")
	report, err := c.deps.Tracker.SaveUsageReport(ctx, c.deps.Store, layout.UsageReport)
	if err != nil {
		return Update{}, err
	}

	combined, err := c.loadCombinedCode(ctx, code)
	if err != nil {
		return Update{}, err
	}
	usageJSON, err := c.deps.Store.ReadText(ctx, layout.UsageReport)
	if err != nil {
		return Update{}, err
	}

	specArtifact, designArtifact := spec.out.Artifact, design.out.Artifact
	status := "Generation complete!"
	if len(r.degraded) > 0 {
		status = fmt.Sprintf("Generation complete with defaults for: %s", joinRoles(r.degraded))
	}
	return Update{
		RunID:        r.id,
		Status:       status,
		Progress:     ProgressDone,
		Spec:         &specArtifact,
		Design:       &designArtifact,
		Files:        code,
		Code:         combined,
		Tests:        tests.out.Artifact.Code,
		TestPath:     layout.TestPath(tests.out.Artifact.Filename),
		UsageReport:  usageJSON,
		Usage:        &report,
		Instructions: Instructions(specArtifact, layout),
		Degraded:     r.degraded,
		Done:         true,
	}, nil
}

type stageResult[T any] struct {
	out agents.Outcome[T]
	err error
}

// runStage applies the stage timeout, records degradation and turns
// cancellation of the run into an abort.
func runStage[T any](ctx context.Context, c *Controller, r *run, role schemas.Role, fn func(context.Context) (agents.Outcome[T], error)) stageResult[T] {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	out, err := fn(sctx)
	if err != nil {
		return stageResult[T]{out: out, err: err}
	}
	if out.Degraded {
		r.degraded = append(r.degraded, role)
	}
	if err := ctx.Err(); err != nil {
		return stageResult[T]{out: out, err: fmt.Errorf("run cancelled during %s: %w", role, err)}
	}
	return stageResult[T]{out: out}
}

// generateCode runs the code stage on a worker goroutine and emits synthetic
// ticks while it works. The controller always waits for the worker.
func (c *Controller) generateCode(ctx context.Context, r *run, spec schemas.RequirementSpec, design schemas.DesignSpec) ([]schemas.GeneratedCode, error) {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	var result stageResult[[]schemas.GeneratedCode]

	g.Go(func() error {
		defer close(done)
		result = runStage(gctx, c, r, schemas.RoleCodeGen, func(sctx context.Context) (agents.Outcome[[]schemas.GeneratedCode], error) {
			return c.codegen.Run(sctx, spec, design)
		})
		return result.err
	})

	ticker := time.NewTicker(c.deps.Pipeline.TickInterval)
	defer ticker.Stop()
	progress := ProgressCodeGen
	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case <-ticker.C:
			if progress < ProgressMaxTick {
				progress++
				c.tick(r, progress)
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result.out.Artifact, nil
}

func (c *Controller) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.deps.Pipeline.StageTimeout > 0 {
		return context.WithTimeout(ctx, c.deps.Pipeline.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// loadCombinedCode reads the persisted files back and joins them for display.
func (c *Controller) loadCombinedCode(ctx context.Context, code []schemas.GeneratedCode) (string, error) {
	parts := make([]string, 0, len(code))
	for _, gc := range code {
		content, err := c.deps.Store.ReadText(ctx, c.deps.Layout.CodePath(gc.Filename))
		if err != nil {
			return "", err
		}
		parts = append(parts, "# "+gc.Filename+"\n"+content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// checkpoint publishes progress on the bus and delivers it to the caller.
func (c *Controller) checkpoint(ctx context.Context, r *run, progress int, status string) {
	r.logger.Debug("Checkpoint", zap.Int("progress", progress), zap.String("status", status))
	c.publish(r, progress, status)
	c.emit(ctx, r, Update{RunID: r.id, Status: status, Progress: progress})
}

// tick is a best-effort progress update; it is dropped when the caller is behind.
func (c *Controller) tick(r *run, progress int) {
	select {
	case r.updates <- Update{RunID: r.id, Status: "Generating code... (working)", Progress: progress}:
	default:
	}
}

func (c *Controller) publish(r *run, progress int, status string) {
	err := c.ui.NotifyWithMetadata(schemas.PipelineProgress{RunID: r.id, Percent: progress, Status: status}, map[string]string{"run_id": r.id})
	if err != nil {
		r.logger.Debug("Could not publish progress", zap.Error(err))
	}
}

func (c *Controller) emit(ctx context.Context, r *run, u Update) {
	select {
	case r.updates <- u:
	case <-ctx.Done():
		// The caller is gone; keep the final update if there is room.
		if u.Done {
			select {
			case r.updates <- u:
			default:
			}
		}
	}
}

// fail emits the terminal error update: progress 0 and empty artifacts.
func (c *Controller) fail(ctx context.Context, r *run, err error) {
	r.logger.Error("Pipeline run failed", zap.Error(err))
	c.publish(r, 0, "Error: "+err.Error())
	c.emit(ctx, r, Update{
		RunID:    r.id,
		Status:   "Error: " + err.Error(),
		Progress: 0,
		Degraded: r.degraded,
		Done:     true,
		Error:    err.Error(),
		Err:      err,
	})
}

func (c *Controller) recordRun(ctx context.Context, r *run, record schemas.RunRecord) {
	if c.deps.Ledger == nil {
		return
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.deps.Ledger.RecordRun(lctx, record); err != nil {
		r.logger.Warn("Failed to record run", zap.Error(err))
	}
}

// drainMailboxes discards whatever is still queued once the listener has
// stopped, so broadcasts do not accumulate across runs.
func (c *Controller) drainMailboxes(r *run) {
	total := 0
	for _, role := range c.deps.Bus.Roles() {
		total += len(c.deps.Bus.Drain(role))
	}
	if total > 0 {
		r.logger.Debug("Discarded unconsumed messages", zap.Int("count", total))
	}
}

// Busy reports whether a run is executing.
func (c *Controller) Busy() bool { return len(c.running) > 0 }

func joinRoles(roles []schemas.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}
