package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
)

// FewShot guides the model with three worked analyses before asking for a
// scored indicator breakdown.
type FewShot struct {
	gw     gateway.Gateway
	cfg    Config
	logger *slog.Logger
}

// NewFewShot returns the few-shot indicator analysis strategy.
func NewFewShot(gw gateway.Gateway, cfg Config, logger *slog.Logger) *FewShot {
	return &FewShot{gw: gw, cfg: cfg, logger: logger}
}

func (s *FewShot) Name() string { return schema.FewShotIndicatorAnalysis }

func (s *FewShot) Description() string {
	return "Few-shot: indicator analysis guided by prior worked examples"
}

func (s *FewShot) Schema() schema.OutputSchema { return schema.FewShotIndicator }

const fewShotTemplate = `You are an analyst specialised in risk assessment for health insurance.

EXAMPLES OF PREVIOUS ANALYSES:

EXAMPLE 1:
Image: young person, healthy appearance
Metadata: weight_kg: 70, age: 25
Analysis:
{
    "risk_score": 2,
    "indicators": ["Young and healthy appearance", "Weight within the normal range", "No visual signs of concern"],
    "summary": "Low risk profile based on young age and the healthy appearance observed",
    "confidence_level": "High"
}

EXAMPLE 2:
Image: middle-aged person, some signs of tiredness
Metadata: weight_kg: 95, age: 45
Analysis:
{
    "risk_score": 6,
    "indicators": ["Visible signs of fatigue", "Weight above ideal", "Medium-risk age bracket"],
    "summary": "Moderate risk due to elevated weight and visual signs suggesting stress or tiredness",
    "confidence_level": "Medium"
}

EXAMPLE 3:
Image: elderly person, frail appearance
Metadata: weight_kg: 55, age: 70
Analysis:
{
    "risk_score": 8,
    "indicators": ["Advanced age", "Frail appearance", "Weight possibly low for age"],
    "summary": "High risk due to advanced age and an appearance suggesting possible frailty",
    "confidence_level": "High"
}

NOW ANALYSE:
Image: [supplied image]
Metadata: %s

Following the examples above, analyse the supplied image with the same evaluation pattern. Consider observable visual indicators and the supplied metadata.

Respond ONLY with valid JSON:
{
    "risk_score": <number from 0 to 10>,
    "indicators": ["indicator 1", "indicator 2", "indicator 3"],
    "summary": "technical summary of the analysis",
    "confidence_level": "High | Medium | Low"
}`

func (s *FewShot) Prompt(md Metadata) string {
	return fmt.Sprintf(fewShotTemplate, md.String())
}

func (s *FewShot) Execute(ctx context.Context, image []byte, md Metadata) Outcome {
	return generate(ctx, s.gw, s.cfg.Model, s.Name(), s.Prompt(md), image, s.Schema(), s.logger)
}
