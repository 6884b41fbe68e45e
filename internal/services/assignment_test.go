package services

import (
	"fmt"
	"math/rand"
	"testing"
)

func makePraises(n int) []*Praise {
	out := make([]*Praise, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Praise{
			ID:       fmt.Sprintf("p%d", i),
			Giver:    fmt.Sprintf("giver%d", i),
			Receiver: fmt.Sprintf("receiver%d", i),
		})
	}
	return out
}

func poolIDs(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("q%d", i))
	}
	return out
}

func TestPlanAssignmentCoversEveryPraise(t *testing.T) {
	praises := makePraises(10)
	settings := PeriodSettings{QuantifiersPerPraise: 3, PraisePerQuantifier: 10}
	rng := rand.New(rand.NewSource(1))

	plan, err := PlanAssignment(praises, poolIDs(5), settings, rng)
	if err != nil {
		t.Fatalf("PlanAssignment: %v", err)
	}
	if len(plan) != 30 {
		t.Fatalf("plan size = %d, want 30", len(plan))
	}

	perPraise := map[string]map[string]bool{}
	for _, a := range plan {
		if perPraise[a.PraiseID] == nil {
			perPraise[a.PraiseID] = map[string]bool{}
		}
		if perPraise[a.PraiseID][a.Quantifier] {
			t.Fatalf("quantifier %s assigned twice to praise %s", a.Quantifier, a.PraiseID)
		}
		perPraise[a.PraiseID][a.Quantifier] = true
	}
	for _, p := range praises {
		if len(perPraise[p.ID]) != 3 {
			t.Fatalf("praise %s got %d quantifiers, want 3", p.ID, len(perPraise[p.ID]))
		}
	}
}

func TestPlanAssignmentRespectsCapacity(t *testing.T) {
	praises := makePraises(8)
	settings := PeriodSettings{QuantifiersPerPraise: 2, PraisePerQuantifier: 4}
	rng := rand.New(rand.NewSource(2))

	plan, err := PlanAssignment(praises, poolIDs(4), settings, rng)
	if err != nil {
		t.Fatalf("PlanAssignment: %v", err)
	}
	load := map[string]int{}
	for _, a := range plan {
		load[a.Quantifier]++
	}
	for uid, n := range load {
		if n > 4 {
			t.Fatalf("quantifier %s carries %d items, cap is 4", uid, n)
		}
	}
	// 16 assignments over 4 quantifiers with cap 4 forces a perfect balance.
	for _, uid := range poolIDs(4) {
		if load[uid] != 4 {
			t.Fatalf("quantifier %s carries %d items, want 4", uid, load[uid])
		}
	}
}

func TestPlanAssignmentExcludesGiverAndReceiver(t *testing.T) {
	praises := []*Praise{
		{ID: "p0", Giver: "q0", Receiver: "q1"},
		{ID: "p1", Giver: "q2", Receiver: "q3"},
	}
	settings := PeriodSettings{QuantifiersPerPraise: 2, PraisePerQuantifier: 10}
	rng := rand.New(rand.NewSource(3))

	plan, err := PlanAssignment(praises, poolIDs(4), settings, rng)
	if err != nil {
		t.Fatalf("PlanAssignment: %v", err)
	}
	for _, a := range plan {
		var p *Praise
		for _, cand := range praises {
			if cand.ID == a.PraiseID {
				p = cand
			}
		}
		if a.Quantifier == p.Giver || a.Quantifier == p.Receiver {
			t.Fatalf("quantifier %s is a party to praise %s", a.Quantifier, a.PraiseID)
		}
	}
}

func TestPlanAssignmentInsufficientPool(t *testing.T) {
	praises := makePraises(2)
	settings := PeriodSettings{QuantifiersPerPraise: 3, PraisePerQuantifier: 10}
	rng := rand.New(rand.NewSource(4))

	_, err := PlanAssignment(praises, poolIDs(2), settings, rng)
	if !IsCode(err, ErrorInsufficientPool) {
		t.Fatalf("got %v, want insufficient_pool", err)
	}
}

func TestPlanAssignmentConflictsExhaustPool(t *testing.T) {
	// Three pool members, but two of them are parties to the praise item, so
	// only one is eligible and the all-or-nothing plan fails.
	praises := []*Praise{{ID: "p0", Giver: "q0", Receiver: "q1"}}
	settings := PeriodSettings{QuantifiersPerPraise: 2, PraisePerQuantifier: 10}
	rng := rand.New(rand.NewSource(5))

	_, err := PlanAssignment(praises, poolIDs(3), settings, rng)
	if !IsCode(err, ErrorInsufficientPool) {
		t.Fatalf("got %v, want insufficient_pool", err)
	}
}

func TestPlanAssignmentRejectsBadSettings(t *testing.T) {
	praises := makePraises(1)
	rng := rand.New(rand.NewSource(6))
	if _, err := PlanAssignment(praises, poolIDs(3), PeriodSettings{QuantifiersPerPraise: 0, PraisePerQuantifier: 10}, rng); !IsCode(err, ErrorInvalid) {
		t.Fatalf("zero quantifiers per praise: got %v", err)
	}
	if _, err := PlanAssignment(praises, poolIDs(3), PeriodSettings{QuantifiersPerPraise: 3, PraisePerQuantifier: 0}, rng); !IsCode(err, ErrorInvalid) {
		t.Fatalf("zero praise per quantifier: got %v", err)
	}
	if _, err := PlanAssignment(praises, poolIDs(3), PeriodSettings{QuantifiersPerPraise: 3, PraisePerQuantifier: 10}, nil); !IsCode(err, ErrorInvalid) {
		t.Fatalf("nil rng: got %v", err)
	}
}
