package services

import (
	"fmt"
	"time"
)

// QuantifyStore abstracts persistence operations required by QuantifyService.
type QuantifyStore interface {
	GetQuantification(id string) (*Quantification, error)
	UpdateQuantification(q *Quantification) error
	ListQuantificationsByPraise(praiseID string) ([]*Quantification, error)
	// ListDuplicatesOf returns rows whose DuplicateOf references the given
	// quantification.
	ListDuplicatesOf(quantificationID string) ([]*Quantification, error)
	GetPraise(id string) (*Praise, error)
	GetPeriod(id string) (*Period, error)
	UpdatePraiseScore(praiseID string, score float64, realized bool) error
	AddAudit(e AuditEntry)
}

// SubmitScoreInput is one quantifier's submission for one of their rows.
// Exactly one of Score, Dismissed or DuplicateOf may be set; each submission
// fully replaces the row's previous state (last writer wins).
type SubmitScoreInput struct {
	QuantificationID string
	SubmittedBy      string
	Score            *int
	Dismissed        bool
	DuplicateOf      string
}

// QuantifyService is the quantification ledger: the authoritative record of
// every (praise, quantifier) assignment and its submitted state. Every
// successful mutation recomputes the affected praise consensus scores.
type QuantifyService struct {
	store QuantifyStore
	now   func() time.Time
}

func NewQuantifyService(store QuantifyStore) *QuantifyService {
	return &QuantifyService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SubmitScore validates and applies one submission, then recomputes the
// consensus score of the affected praise and of any praise holding a
// duplicate reference to it. It returns every praise whose score changed.
//
// The write happens under the period's exclusive lock, the same lock
// ClosePeriod takes, and the period status is re-read under it. A submission
// racing a close therefore either lands before the close or is rejected with
// period_closed; it can never mutate a row of a CLOSED period.
func (s *QuantifyService) SubmitScore(in SubmitScoreInput) ([]*Praise, error) {
	q, err := s.store.GetQuantification(in.QuantificationID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("quantification not found")
	}
	if q.Quantifier != in.SubmittedBy {
		return nil, NewForbiddenError("quantification belongs to another quantifier")
	}

	praise, err := s.store.GetPraise(q.PraiseID)
	if err != nil {
		return nil, err
	}
	if praise == nil {
		return nil, NewNotFoundError("praise not found")
	}
	if praise.PeriodID == "" {
		return nil, NewInvalidError("praise does not belong to any period")
	}

	unlock := lockPeriod(praise.PeriodID)
	defer unlock()

	period, err := s.periodOf(praise)
	if err != nil {
		return nil, err
	}
	if period.Status == PeriodClosed {
		return nil, NewPeriodClosedError("period is closed")
	}

	if err := s.validate(in, q, praise, period); err != nil {
		return nil, err
	}

	q.Score = in.Score
	q.Dismissed = in.Dismissed
	q.DuplicateOf = in.DuplicateOf
	q.UpdatedAt = s.now()
	if err := s.store.UpdateQuantification(q); err != nil {
		return nil, err
	}

	affected, err := s.recompute(praise, period.Settings)
	if err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{
		Time:   s.now(),
		Actor:  in.SubmittedBy,
		Action: "quantify",
		Target: q.PraiseID,
		Note:   submissionNote(in),
	})
	return affected, nil
}

func (s *QuantifyService) validate(in SubmitScoreInput, q *Quantification, praise *Praise, period *Period) error {
	if in.Dismissed && in.DuplicateOf != "" {
		return NewInvalidError("dismissed and duplicate are mutually exclusive")
	}
	if in.Score != nil && (in.Dismissed || in.DuplicateOf != "") {
		return NewInvalidError("score cannot be submitted with dismissed or duplicate")
	}

	switch {
	case in.DuplicateOf != "":
		return s.validateDuplicate(in, q, praise, period)
	case in.Dismissed:
		return nil
	case in.Score != nil:
		if *in.Score < period.Settings.ScoreMin || *in.Score > period.Settings.ScoreMax {
			return NewInvalidError(fmt.Sprintf("score %d outside allowed range %d..%d",
				*in.Score, period.Settings.ScoreMin, period.Settings.ScoreMax))
		}
		return nil
	default:
		return NewInvalidError("submission requires a score, dismissal or duplicate reference")
	}
}

func (s *QuantifyService) validateDuplicate(in SubmitScoreInput, q *Quantification, praise *Praise, period *Period) error {
	if in.DuplicateOf == q.ID {
		return NewInvalidError("quantification cannot duplicate itself")
	}
	target, err := s.store.GetQuantification(in.DuplicateOf)
	if err != nil {
		return err
	}
	if target == nil {
		return NewNotFoundError("duplicate target not found")
	}
	if target.Quantifier != q.Quantifier {
		return NewInvalidError("duplicate target belongs to another quantifier")
	}
	if target.DuplicateOf != "" {
		return NewDuplicateChainError("duplicate target is itself marked as a duplicate")
	}
	targetPraise, err := s.store.GetPraise(target.PraiseID)
	if err != nil {
		return err
	}
	if targetPraise == nil {
		return NewNotFoundError("duplicate target praise not found")
	}
	if targetPraise.Receiver != praise.Receiver {
		return NewInvalidError("duplicate target has a different receiver")
	}
	if targetPraise.PeriodID != praise.PeriodID {
		return NewInvalidError("duplicate target belongs to another period")
	}
	// Reject marking a row that is already referenced by others; allowing it
	// would create a chain deeper than one hop.
	deps, err := s.store.ListDuplicatesOf(q.ID)
	if err != nil {
		return err
	}
	if len(deps) > 0 {
		return NewDuplicateChainError("quantification is referenced by other duplicates")
	}
	return nil
}

// recompute refreshes the consensus score of praise, then walks outward to
// every praise holding a duplicate reference to a recomputed item. Each
// praise is visited at most once, so the walk terminates even if duplicate
// references between praise items form a loop.
func (s *QuantifyService) recompute(praise *Praise, settings PeriodSettings) ([]*Praise, error) {
	var affected []*Praise
	seen := map[string]bool{}
	queue := []*Praise{praise}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		updated, err := s.recomputeOne(p, settings)
		if err != nil {
			return nil, err
		}
		affected = append(affected, updated)

		rows, err := s.store.ListQuantificationsByPraise(p.ID)
		if err != nil {
			return nil, err
		}
		for _, q := range rows {
			deps, err := s.store.ListDuplicatesOf(q.ID)
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				if seen[dep.PraiseID] {
					continue
				}
				depPraise, err := s.store.GetPraise(dep.PraiseID)
				if err != nil {
					return nil, err
				}
				if depPraise != nil {
					queue = append(queue, depPraise)
				}
			}
		}
	}
	return affected, nil
}

func (s *QuantifyService) recomputeOne(praise *Praise, settings PeriodSettings) (*Praise, error) {
	rows, err := s.store.ListQuantificationsByPraise(praise.ID)
	if err != nil {
		return nil, err
	}
	originals, err := s.originalScores(rows)
	if err != nil {
		return nil, err
	}
	score, complete := ConsensusScore(rows, originals, settings)
	praise.Score = score
	praise.ScoreRealized = complete
	if err := s.store.UpdatePraiseScore(praise.ID, score, complete); err != nil {
		return nil, err
	}
	return praise, nil
}

// originalScores resolves, for each duplicate row, the current consensus
// score of the praise its target belongs to. An original that has no
// consensus yet contributes zero until its own rows complete.
func (s *QuantifyService) originalScores(rows []*Quantification) (map[string]float64, error) {
	out := map[string]float64{}
	for _, q := range rows {
		if q.DuplicateOf == "" {
			continue
		}
		target, err := s.store.GetQuantification(q.DuplicateOf)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		original, err := s.store.GetPraise(target.PraiseID)
		if err != nil {
			return nil, err
		}
		if original != nil && original.ScoreRealized {
			out[q.ID] = original.Score
		}
	}
	return out, nil
}

func (s *QuantifyService) periodOf(praise *Praise) (*Period, error) {
	if praise.PeriodID == "" {
		return nil, NewInvalidError("praise does not belong to any period")
	}
	period, err := s.store.GetPeriod(praise.PeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, NewNotFoundError("period not found")
	}
	return period, nil
}

func submissionNote(in SubmitScoreInput) string {
	switch {
	case in.Dismissed:
		return "dismissed"
	case in.DuplicateOf != "":
		return "duplicate of " + in.DuplicateOf
	case in.Score != nil:
		return fmt.Sprintf("score %d", *in.Score)
	}
	return ""
}
