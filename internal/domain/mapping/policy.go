package mapping

// Policy holds the tunable thresholds of the detection and learning loop.
type Policy struct {
	// ReuseThreshold is the learned-mapping confidence at which a stored
	// mapping is accepted without running detectors.
	ReuseThreshold float64
	// AcceptanceThreshold is the minimum transform success rate that persists learning.
	AcceptanceThreshold float64
	// AIFloor drops classifier answers below this overall confidence.
	AIFloor float64
	// AIFastPath accepts a classifier answer directly at or above this confidence.
	AIFastPath float64
	// LowConfidence marks header-based proposals weak enough to consult the value analyzer.
	LowConfidence float64
	// SampleRowLimit bounds the rows used for value inference and classification.
	SampleRowLimit int
	// QuantityMax is the upper bound for value-inferred quantity columns.
	QuantityMax int
	// SynonymUsageBoost is added to a synonym weight on each successful use (capped at 1).
	SynonymUsageBoost float64
	// LearnedReuseBoost is added to a history record's confidence on each reuse (capped at 1).
	LearnedReuseBoost float64
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		ReuseThreshold:      0.7,
		AcceptanceThreshold: 0.5,
		AIFloor:             0.5,
		AIFastPath:          0.7,
		LowConfidence:       0.7,
		SampleRowLimit:      15,
		QuantityMax:         10000,
		SynonymUsageBoost:   0.02,
		LearnedReuseBoost:   0.01,
	}
}

// WithDefaults fills zero values from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.ReuseThreshold <= 0 {
		p.ReuseThreshold = d.ReuseThreshold
	}
	if p.AcceptanceThreshold <= 0 {
		p.AcceptanceThreshold = d.AcceptanceThreshold
	}
	if p.AIFloor <= 0 {
		p.AIFloor = d.AIFloor
	}
	if p.AIFastPath <= 0 {
		p.AIFastPath = d.AIFastPath
	}
	if p.LowConfidence <= 0 {
		p.LowConfidence = d.LowConfidence
	}
	if p.SampleRowLimit <= 0 {
		p.SampleRowLimit = d.SampleRowLimit
	}
	if p.QuantityMax <= 0 {
		p.QuantityMax = d.QuantityMax
	}
	if p.SynonymUsageBoost <= 0 {
		p.SynonymUsageBoost = d.SynonymUsageBoost
	}
	if p.LearnedReuseBoost <= 0 {
		p.LearnedReuseBoost = d.LearnedReuseBoost
	}
	return p
}

// Clamp01 bounds a confidence into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
