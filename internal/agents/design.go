package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
)

// Design turns a RequirementSpec into a DesignSpec.
type Design struct {
	stage
}

func NewDesign(gen Generator, busClient *bus.Client, logger *zap.Logger) *Design {
	return &Design{stage: newStage("Design", schemas.RoleDesign, gen, busClient, logger)}
}

// Run never fails; on any error it returns DefaultDesign marked degraded.
func (d *Design) Run(ctx context.Context, spec schemas.RequirementSpec) Outcome[schemas.DesignSpec] {
	d.notify(schemas.DesignStarted{})

	response, err := d.generate(ctx, string(schemas.RoleDesign), designPrompt(spec), schemas.GenerationOptions{
		Tier:            schemas.TierPowerful,
		ForceJSONFormat: true,
	})
	if err == nil {
		var design schemas.DesignSpec
		if design, err = decodeArtifact(response, schemas.DesignSpec{}); err == nil {
			d.logger.Info("Design completed", zap.Strings("modules", design.Modules))
			d.notify(schemas.DesignCompleted{Design: design})
			return Outcome[schemas.DesignSpec]{Artifact: design}
		}
	}

	d.degrade(err, response)
	return Outcome[schemas.DesignSpec]{Artifact: DefaultDesign(), Degraded: true, Cause: err}
}
