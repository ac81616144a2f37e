// Package risk computes composite weighted-deviation risk scores from vital
// readings and rolling statistics, and classifies them into severity tiers.
package risk

import (
	"math"
	"time"

	"github.com/neovance/neovance-go/internal/vitals"
)

// Tier is the discrete severity classification of an aggregate risk score.
type Tier string

const (
	TierOK       Tier = "OK"
	TierWarning  Tier = "WARNING"
	TierCritical Tier = "CRITICAL"
)

// sigmaEpsilon bounds the normalization denominator away from zero.
const sigmaEpsilon = 1e-6

// VitalParams are the clinical scoring parameters for one vital.
type VitalParams struct {
	// Baseline is the ideal value (mu).
	Baseline float64
	// Weight scales the vital's contribution.
	Weight float64
	// Exponent shapes the penalty; >= 1 so larger deviations are never
	// penalized less than proportionally.
	Exponent float64
}

// Config parameterizes the scorer. The thresholds partition the score line:
// OK up to WarningThreshold, WARNING up to CriticalThreshold, CRITICAL above.
type Config struct {
	Vitals            map[string]VitalParams
	WarningThreshold  float64
	CriticalThreshold float64
}

// Contribution is one vital's share of an assessment, retained for audit and
// explainability.
type Contribution struct {
	Value        float64 `json:"value"`
	Baseline     float64 `json:"baseline"`
	Sigma        float64 `json:"sigma"`
	Deviation    float64 `json:"deviation"`
	Contribution float64 `json:"contribution"`
}

// Assessment is the ephemeral result of scoring one reading.
type Assessment struct {
	SubjectID     string                  `json:"subject_id"`
	Timestamp     time.Time               `json:"timestamp"`
	Contributions map[string]Contribution `json:"contributions"`
	Score         float64                 `json:"score"`
	Tier          Tier                    `json:"tier"`
}

// StatsProvider supplies per-subject rolling statistics at scoring time.
// *vitals.Engine satisfies it.
type StatsProvider interface {
	Statistics(subject, vital string) vitals.Statistics
}

// Scorer converts readings into assessments.
type Scorer struct {
	cfg   Config
	stats StatsProvider
}

// NewScorer creates a scorer over the given statistics provider.
func NewScorer(cfg Config, stats StatsProvider) *Scorer {
	return &Scorer{cfg: cfg, stats: stats}
}

// Score computes the aggregate weighted-deviation score for the given vital
// values. Configured vitals absent from the input contribute nothing; they
// are skipped, not treated as zero deviation. Sigma comes from the statistics
// provider at call time, so early readings are judged against clinical
// population defaults and later ones against patient-specific variability.
// The score is deliberately unbounded; only the tier drives alerting.
func (s *Scorer) Score(subject string, values map[string]float64, ts time.Time) *Assessment {
	assessment := &Assessment{
		SubjectID:     subject,
		Timestamp:     ts,
		Contributions: make(map[string]Contribution, len(values)),
	}

	for vital, params := range s.cfg.Vitals {
		value, present := values[vital]
		if !present {
			continue
		}

		stats := s.stats.Statistics(subject, vital)
		sigma := math.Max(stats.StdDev, sigmaEpsilon)
		deviation := math.Abs(value-params.Baseline) / sigma
		contribution := params.Weight * math.Pow(deviation, params.Exponent)

		assessment.Contributions[vital] = Contribution{
			Value:        value,
			Baseline:     params.Baseline,
			Sigma:        sigma,
			Deviation:    deviation,
			Contribution: contribution,
		}
		assessment.Score += contribution
	}

	assessment.Tier = s.Classify(assessment.Score)
	return assessment
}

// Classify maps an aggregate score to its severity tier.
func (s *Scorer) Classify(score float64) Tier {
	switch {
	case score > s.cfg.CriticalThreshold:
		return TierCritical
	case score > s.cfg.WarningThreshold:
		return TierWarning
	default:
		return TierOK
	}
}
