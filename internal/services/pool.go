package services

// RequiredPoolSize computes the minimum number of distinct quantifiers
// needed to cover praiseCount items with quantifiersPerPraise assignments
// each, given that one quantifier takes at most praisePerQuantifier items:
// ceil(praiseCount * quantifiersPerPraise / praisePerQuantifier).
func RequiredPoolSize(praiseCount, quantifiersPerPraise, praisePerQuantifier int) (int, error) {
	if praiseCount < 0 {
		return 0, NewInvalidError("praise count must not be negative")
	}
	if quantifiersPerPraise <= 0 {
		return 0, NewInvalidError("quantifiers per praise must be positive")
	}
	if praisePerQuantifier <= 0 {
		return 0, NewInvalidError("praise per quantifier must be positive")
	}
	total := praiseCount * quantifiersPerPraise
	return (total + praisePerQuantifier - 1) / praisePerQuantifier, nil
}

// PoolRequirementsMet reports whether the current pool covers the required size.
func PoolRequirementsMet(currentPoolSize, requiredPoolSize int) bool {
	return currentPoolSize >= requiredPoolSize
}

// PoolRequirements is the capacity check result surfaced to callers before
// a period may move into quantification.
type PoolRequirements struct {
	PeriodID         string `json:"period_id"`
	PraiseCount      int    `json:"praise_count"`
	QuantifierPool   int    `json:"quantifier_pool"`
	RequiredPoolSize int    `json:"required_pool_size"`
	Met              bool   `json:"met"`
}
