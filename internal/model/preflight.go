package model

// CostTier buckets the expected extraction cost by video duration.
type CostTier string

const (
	CostLow      CostTier = "low"
	CostModerate CostTier = "moderate"
	CostHigh     CostTier = "high"
)

// CheckResult is one preflight sub-check: a score contribution plus the
// evidence that produced it.
type CheckResult struct {
	Pass     bool     `json:"pass"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
}

// PreflightChecks groups the individual admission sub-checks.
type PreflightChecks struct {
	Duration    CheckResult `json:"duration"`
	Category    CheckResult `json:"category"`
	Caption     CheckResult `json:"caption"`
	Topic       CheckResult `json:"topic"`
	Patterns    CheckResult `json:"patterns"`
	AntiSignals CheckResult `json:"anti_signals"`
}

// TinyVerdict is the stage-2 cheap classifier verdict, produced only for
// borderline stage-1 outcomes.
type TinyVerdict struct {
	IsRecipe   bool    `json:"is_recipe"`
	Confidence float64 `json:"confidence"`
}

// CostEstimate is surfaced to the caller before committing to extraction.
type CostEstimate struct {
	Tier             CostTier `json:"tier"`
	EstimatedSeconds int      `json:"estimated_seconds"`
	Warning          string   `json:"warning,omitempty"`
}

// PreflightResult is the immutable admission verdict. Created once per
// check; consumed immediately by the caller.
type PreflightResult struct {
	Pass          bool            `json:"pass"`
	Score         float64         `json:"score"`
	Borderline    bool            `json:"borderline"`
	AllowOverride bool            `json:"allow_override"`
	Checks        PreflightChecks `json:"checks"`
	TinyVerdict   *TinyVerdict    `json:"tiny_classifier_verdict,omitempty"`
	CostEstimate  *CostEstimate   `json:"cost_estimate,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}
