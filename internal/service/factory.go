// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/agents"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/orchestrator"
	"github.com/xkilldash9x/agentforge/internal/tracking"
)

// ComponentFactory builds the pipeline components from configuration.
// Commands depend on this interface so tests can substitute their own.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	// storageRoot is where the fs backend resolves artifact paths.
	storageRoot string
}

// NewComponentFactory creates a factory whose fs storage is rooted at storageRoot.
func NewComponentFactory(storageRoot string) ComponentFactory {
	return &concreteFactory{storageRoot: storageRoot}
}

// Create wires the LLM client, bus, tracker, artifact store, run ledger and
// controller. Anything created before a failure is shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger.Named("components")}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. LLM client
	llm, err := InitializeLLMClient(ctx, cfg.LLM(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.LLM = llm

	// 2. Message bus and the tracker's client
	components.Bus = bus.NewMessageBus(logger)
	trackingClient, err := bus.NewClient(components.Bus, schemas.RoleTracking)
	if err != nil {
		initializationErr = fmt.Errorf("failed to bind tracking client: %w", err)
		return nil, initializationErr
	}
	components.Tracker = tracking.NewTracker(llm, trackingClient, logger)
	logger.Debug("Message bus and tracker initialized.")

	// 3. Artifact store
	artifactStore, err := InitializeArtifactStore(ctx, cfg.Storage(), f.storageRoot, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Store = artifactStore

	// 4. Run ledger (optional)
	ledger, err := InitializeLedger(ctx, cfg.Database(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Ledger = ledger

	// 5. Controller
	components.Layout = agents.LayoutFromConfig(cfg.Output())
	controller, err := orchestrator.NewController(orchestrator.Dependencies{
		Bus:      components.Bus,
		Tracker:  components.Tracker,
		Store:    components.Store,
		Ledger:   components.Ledger,
		Layout:   components.Layout,
		Pipeline: cfg.Pipeline(),
		Logger:   logger,
	})
	if err != nil {
		initializationErr = fmt.Errorf("failed to create controller: %w", err)
		return nil, initializationErr
	}
	components.Controller = controller

	logger.Info("All pipeline components initialized successfully.",
		zap.String("provider", string(cfg.LLM().Provider)),
		zap.String("storage", string(cfg.Storage().Backend)),
		zap.Bool("ledger", ledger != nil),
	)
	return components, nil
}
