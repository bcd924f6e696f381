package risk

import "twinguard-lab/internal/domain/models"

// accumulator holds the running prediction-outcome counters. Counters are
// additive only; resolve() is the single writer and fires once per
// prediction, which is what keeps the stats idempotent per id.
type accumulator struct {
	total    int
	accurate int
	occurred int
	expired  int
	byType   map[models.FailureType]*typeCounter
}

type typeCounter struct {
	total    int
	accurate int
}

func newAccumulator() accumulator {
	return accumulator{byType: make(map[models.FailureType]*typeCounter)}
}

func (a *accumulator) record(t models.FailureType, status models.PredictionStatus, accurate bool) {
	a.total++
	if accurate {
		a.accurate++
	}
	switch status {
	case models.PredictionOccurred:
		a.occurred++
	case models.PredictionExpired:
		a.expired++
	}

	tc := a.byType[t]
	if tc == nil {
		tc = &typeCounter{}
		a.byType[t] = tc
	}
	tc.total++
	if accurate {
		tc.accurate++
	}
}

func (a *accumulator) snapshot() models.AccuracyStats {
	stats := models.AccuracyStats{
		Total:    a.total,
		Accurate: a.accurate,
		Occurred: a.occurred,
		Expired:  a.expired,
		ByType:   make(map[models.FailureType]models.TypeAccuracy, len(a.byType)),
	}
	if a.total > 0 {
		stats.Accuracy = float64(a.accurate) / float64(a.total)
	}
	for t, tc := range a.byType {
		ta := models.TypeAccuracy{Total: tc.total, Accurate: tc.accurate}
		if tc.total > 0 {
			ta.Accuracy = float64(tc.accurate) / float64(tc.total)
		}
		stats.ByType[t] = ta
	}
	return stats
}
