package models

// RiskTrend compares the current composite score against the previous tick
type RiskTrend string

const (
	TrendIncreasing RiskTrend = "increasing"
	TrendStable     RiskTrend = "stable"
	TrendDecreasing RiskTrend = "decreasing"
)

// RiskComponents are the weighted sub-scores of a composite risk score.
// Each component is in [0,1] before weighting.
type RiskComponents struct {
	Physical      float64 `json:"physical"`
	Cyber         float64 `json:"cyber"`
	Operational   float64 `json:"operational"`
	Environmental float64 `json:"environmental"`
	Cascading     float64 `json:"cascading"`
}

// ConfidenceInterval bounds the composite score; Lo <= Overall <= Hi
type ConfidenceInterval struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// RiskFactor is one ranked explanatory signal behind a score
type RiskFactor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail,omitempty"`
}

// RiskScore is the composite near-term failure estimate for one node
type RiskScore struct {
	Overall            float64            `json:"overall"` // [0,1]
	Probability        float64            `json:"probability"`
	Severity           float64            `json:"severity"`
	TimeToFailureHours float64            `json:"time_to_failure_hours"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Trend              RiskTrend          `json:"trend"`
	Components         RiskComponents     `json:"components"`
	LeadingFactors     []RiskFactor       `json:"leading_factors,omitempty"`
}
