package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
)

// ZeroShot asks for a categorical risk level with direct instructions and no
// worked examples.
type ZeroShot struct {
	gw     gateway.Gateway
	cfg    Config
	logger *slog.Logger
}

// NewZeroShot returns the zero-shot risk assessment strategy.
func NewZeroShot(gw gateway.Gateway, cfg Config, logger *slog.Logger) *ZeroShot {
	return &ZeroShot{gw: gw, cfg: cfg, logger: logger}
}

func (s *ZeroShot) Name() string { return schema.ZeroShotRiskAssessment }

func (s *ZeroShot) Description() string {
	return "Zero-shot: risk assessment from direct instructions, without prior examples"
}

func (s *ZeroShot) Schema() schema.OutputSchema { return schema.ZeroShotRisk }

const zeroShotTemplate = `You are an analyst specialised in risk assessment for health insurance.

TASK: Analyse the supplied image together with the metadata (%s) and determine the risk level.

INSTRUCTIONS:
- Observe general visual indicators in the image
- Consider the supplied data
- Classify the risk as one of: Low, Medium, High
- Give a clear technical justification

RESPONSE FORMAT (JSON only):
{
    "risk_level": "Low | Medium | High",
    "reason": "technical justification based on the visual analysis and the metadata"
}

IMPORTANT: Respond ONLY with the JSON object, without any additional text.`

func (s *ZeroShot) Prompt(md Metadata) string {
	return fmt.Sprintf(zeroShotTemplate, md.String())
}

func (s *ZeroShot) Execute(ctx context.Context, image []byte, md Metadata) Outcome {
	return generate(ctx, s.gw, s.cfg.Model, s.Name(), s.Prompt(md), image, s.Schema(), s.logger)
}
