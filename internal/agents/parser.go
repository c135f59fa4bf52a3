package agents

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/bus"
)

// Parser turns free-text requirements into a RequirementSpec.
type Parser struct {
	stage
}

func NewParser(gen Generator, busClient *bus.Client, logger *zap.Logger) *Parser {
	return &Parser{stage: newStage("Parser", schemas.RoleParser, gen, busClient, logger)}
}

// Run never fails; on any error it returns DefaultRequirements(text) marked degraded.
func (p *Parser) Run(ctx context.Context, text string) Outcome[schemas.RequirementSpec] {
	p.notify(schemas.ParsingStarted{InputLength: utf8.RuneCountInString(text)})

	response, err := p.generate(ctx, string(schemas.RoleParser), parserPrompt(text), schemas.GenerationOptions{
		Tier:            schemas.TierFast,
		ForceJSONFormat: true,
	})
	if err == nil {
		var spec schemas.RequirementSpec
		if spec, err = decodeArtifact(response, requirementPreset()); err == nil {
			p.logger.Info("Requirements parsed",
				zap.Strings("languages", spec.Languages),
				zap.Strings("tenses", spec.Tenses),
			)
			p.notify(schemas.ParsingCompleted{Spec: spec})
			return Outcome[schemas.RequirementSpec]{Artifact: spec}
		}
	}

	p.degrade(err, response)
	return Outcome[schemas.RequirementSpec]{Artifact: DefaultRequirements(text), Degraded: true, Cause: err}
}
