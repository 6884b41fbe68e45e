package services

import "testing"

func TestConsensusScoreMixedSubmissions(t *testing.T) {
	// One score of 50, one dismissal, one duplicate pointing at a praise with
	// consensus 80 under a 0.1 discount: (50 + 8) / 2 = 29.00.
	rows := []*Quantification{
		{ID: "a", Score: intPtr(50)},
		{ID: "b", Dismissed: true},
		{ID: "c", DuplicateOf: "x"},
	}
	originals := map[string]float64{"c": 80}
	s := PeriodSettings{DuplicateDiscount: 0.1}

	score, complete := ConsensusScore(rows, originals, s)
	if !complete {
		t.Fatal("expected complete consensus")
	}
	if score != 29.00 {
		t.Fatalf("score = %v, want 29.00", score)
	}
}

func TestConsensusScoreIncomplete(t *testing.T) {
	rows := []*Quantification{
		{ID: "a", Score: intPtr(50)},
		{ID: "b"},
	}
	score, complete := ConsensusScore(rows, nil, PeriodSettings{})
	if complete {
		t.Fatal("unsubmitted row should leave consensus incomplete")
	}
	if score != 0 {
		t.Fatalf("score = %v, want 0", score)
	}
}

func TestConsensusScoreAllDismissed(t *testing.T) {
	rows := []*Quantification{
		{ID: "a", Dismissed: true},
		{ID: "b", Dismissed: true},
		{ID: "c", Dismissed: true},
	}
	score, complete := ConsensusScore(rows, nil, PeriodSettings{})
	if !complete {
		t.Fatal("all-dismissed praise is complete")
	}
	if score != 0 {
		t.Fatalf("score = %v, want 0", score)
	}
}

func TestConsensusScoreDismissedNotCountedAsZero(t *testing.T) {
	// A dismissal drops out of the mean entirely; it must not drag it down.
	rows := []*Quantification{
		{ID: "a", Score: intPtr(100)},
		{ID: "b", Dismissed: true},
	}
	score, _ := ConsensusScore(rows, nil, PeriodSettings{})
	if score != 100 {
		t.Fatalf("score = %v, want 100", score)
	}
}

func TestConsensusScoreRounding(t *testing.T) {
	rows := []*Quantification{
		{ID: "a", Score: intPtr(1)},
		{ID: "b", Score: intPtr(1)},
		{ID: "c", Score: intPtr(2)},
	}
	score, _ := ConsensusScore(rows, nil, PeriodSettings{})
	if score != 1.33 {
		t.Fatalf("score = %v, want 1.33", score)
	}
}

func TestConsensusScoreNoRows(t *testing.T) {
	score, complete := ConsensusScore(nil, nil, PeriodSettings{})
	if complete || score != 0 {
		t.Fatalf("got (%v, %v), want (0, false)", score, complete)
	}
}

func TestConsensusScoreUnrealizedOriginal(t *testing.T) {
	// A duplicate whose original has no consensus yet contributes zero.
	rows := []*Quantification{
		{ID: "a", Score: intPtr(40)},
		{ID: "b", DuplicateOf: "x"},
	}
	score, complete := ConsensusScore(rows, map[string]float64{}, PeriodSettings{DuplicateDiscount: 0.1})
	if !complete {
		t.Fatal("expected complete consensus")
	}
	if score != 20 {
		t.Fatalf("score = %v, want 20", score)
	}
}
