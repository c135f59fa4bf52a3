// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/agents"
	"github.com/xkilldash9x/agentforge/internal/bus"
	"github.com/xkilldash9x/agentforge/internal/orchestrator"
	"github.com/xkilldash9x/agentforge/internal/tracking"
)

// Components holds everything a pipeline run needs. It centralizes the
// lifecycle of the long-lived dependencies shared by the CLI, the HTTP server
// and the MCP tools.
type Components struct {
	Bus        *bus.MessageBus
	LLM        schemas.LLMClient
	Tracker    *tracking.Tracker
	Store      schemas.ArtifactStore
	Ledger     schemas.RunLedger
	Layout     agents.Layout
	Controller *orchestrator.Controller

	logger *zap.Logger
}

// Shutdown releases the ledger and the LLM client. It is safe to call on a
// partially initialized value.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Ledger != nil {
		if err := c.Ledger.Close(); err != nil {
			logger.Warn("Error closing run ledger.", zap.Error(err))
		} else {
			logger.Debug("Run ledger closed.")
		}
	}

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		} else {
			logger.Debug("LLM client closed.")
		}
	}

	logger.Info("All pipeline components shut down.")
}
