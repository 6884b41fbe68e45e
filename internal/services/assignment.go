package services

import (
	"fmt"
	"math/rand"
	"sort"
)

// Assignment pairs one praise item with one quantifier.
type Assignment struct {
	PraiseID   string
	Quantifier string
}

// PlanAssignment allocates quantifiersPerPraise distinct, conflict-free
// quantifiers to every praise item, balancing load across the pool.
//
// Praise items are visited in a randomized order (one shuffle per planning
// run, to avoid positional bias). For each item the planner picks the
// eligible quantifiers with the highest remaining capacity, breaking ties
// randomly, and decrements their capacity. A quantifier is eligible while it
// has capacity left and is neither the giver nor the receiver of the item.
//
// The plan is all-or-nothing: if any item cannot be covered by N distinct
// eligible quantifiers, planning fails with insufficient_pool and nothing
// is returned.
func PlanAssignment(praises []*Praise, pool []string, s PeriodSettings, rng *rand.Rand) ([]Assignment, error) {
	if s.QuantifiersPerPraise <= 0 {
		return nil, NewInvalidError("quantifiers per praise must be positive")
	}
	if s.PraisePerQuantifier <= 0 {
		return nil, NewInvalidError("praise per quantifier must be positive")
	}
	if rng == nil {
		return nil, NewInvalidError("rng required")
	}

	capacity := make(map[string]int, len(pool))
	for _, uid := range pool {
		capacity[uid] = s.PraisePerQuantifier
	}
	if len(capacity) < s.QuantifiersPerPraise {
		return nil, NewInsufficientPoolError(fmt.Sprintf(
			"pool of %d cannot cover %d quantifiers per praise", len(capacity), s.QuantifiersPerPraise))
	}

	order := make([]*Praise, len(praises))
	copy(order, praises)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	plan := make([]Assignment, 0, len(order)*s.QuantifiersPerPraise)
	for _, p := range order {
		eligible := make([]string, 0, len(capacity))
		for uid := range capacity {
			if capacity[uid] <= 0 || uid == p.Giver || uid == p.Receiver {
				continue
			}
			eligible = append(eligible, uid)
		}
		if len(eligible) < s.QuantifiersPerPraise {
			return nil, NewInsufficientPoolError(fmt.Sprintf(
				"only %d eligible quantifiers for praise %s, need %d",
				len(eligible), p.ID, s.QuantifiersPerPraise))
		}
		// Random tie-break first, then a stable sort by remaining capacity,
		// so equal-capacity quantifiers are picked in random order.
		sort.Strings(eligible)
		rng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
		sort.SliceStable(eligible, func(i, j int) bool { return capacity[eligible[i]] > capacity[eligible[j]] })
		for _, uid := range eligible[:s.QuantifiersPerPraise] {
			capacity[uid]--
			plan = append(plan, Assignment{PraiseID: p.ID, Quantifier: uid})
		}
	}
	return plan, nil
}
