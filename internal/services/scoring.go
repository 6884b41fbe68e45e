package services

import "math"

// ConsensusScore reduces one praise item's quantification rows to a single
// consensus score. originals maps a duplicate row's ID to the consensus
// score of the praise referenced by that row (already computed; duplicate
// chains are flattened to depth one, so one hop is always enough).
//
// The second return value is false while any row is still unsubmitted.
// Dismissed rows are dropped from the averaging set entirely; duplicate rows
// contribute discount * original consensus; scored rows contribute their
// submitted score. The result is the arithmetic mean rounded to two decimal
// places, or 0 when every row was dismissed. The reduction is monotonic and
// order-independent, which keeps recomputation idempotent.
func ConsensusScore(rows []*Quantification, originals map[string]float64, s PeriodSettings) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	effective := make([]float64, 0, len(rows))
	for _, q := range rows {
		switch {
		case q.Dismissed:
			// excluded, not counted as zero
		case q.DuplicateOf != "":
			effective = append(effective, s.DuplicateDiscount*originals[q.ID])
		case q.Score != nil:
			effective = append(effective, float64(*q.Score))
		default:
			return 0, false
		}
	}
	if len(effective) == 0 {
		return 0, true
	}
	var sum float64
	for _, v := range effective {
		sum += v
	}
	return round2(sum / float64(len(effective))), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
