package schema

// Built-in schema names double as strategy names.
const (
	ZeroShotRiskAssessment   = "zero_shot_risk_assessment"
	FewShotIndicatorAnalysis = "few_shot_indicator_analysis"
)

// ZeroShotRisk is the output of the zero-shot strategy: a categorical risk
// level and the model's justification.
var ZeroShotRisk = OutputSchema{
	Name: ZeroShotRiskAssessment,
	Fields: []FieldSpec{
		{
			Name:        "risk_level",
			Kind:        KindString,
			Description: "Categorical risk level.",
			Enum:        []string{"Low", "Medium", "High", "Indeterminate"},
			Default:     "Indeterminate",
		},
		{
			Name:        "reason",
			Kind:        KindString,
			Description: "Technical justification for the risk level.",
			MaxLength:   2000,
			Default:     "No justification was provided by the model.",
		},
	},
}

// FewShotIndicator is the output of the few-shot strategy: a 0-10 score, up to
// five observed indicators, a summary and a confidence level.
var FewShotIndicator = OutputSchema{
	Name: FewShotIndicatorAnalysis,
	Fields: []FieldSpec{
		{
			Name:        "risk_score",
			Kind:        KindNumber,
			Description: "Risk score from 0 (lowest) to 10 (highest).",
			Min:         0,
			Max:         10,
			Default:     5.0,
		},
		{
			Name:        "indicators",
			Kind:        KindStringList,
			Description: "Observed indicators supporting the score.",
			MaxItems:    5,
			Default:     []string{"Inconclusive analysis"},
		},
		{
			Name:        "summary",
			Kind:        KindString,
			Description: "Technical summary of the analysis.",
			MaxLength:   2000,
			Default:     "The model response could not be summarised.",
		},
		{
			Name:        "confidence_level",
			Kind:        KindString,
			Description: "Model confidence in the assessment.",
			Enum:        []string{"High", "Medium", "Low"},
			Default:     "Medium",
		},
	},
}
