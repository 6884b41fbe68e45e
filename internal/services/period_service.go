package services

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PeriodStore abstracts persistence operations required by PeriodService.
type PeriodStore interface {
	InsertPeriod(p *Period) error
	UpdatePeriod(p *Period) error
	GetPeriod(id string) (*Period, error)
	ListPeriods() ([]*Period, error)

	InsertPraise(p *Praise) error
	ListAllPraise() ([]*Praise, error)
	SetPraisePeriod(praiseID, periodID string) error
	ListPraiseByPeriod(periodID string) ([]*Praise, error)

	ListQuantificationsByPeriod(periodID string) ([]*Quantification, error)
	// ApplyAssignment atomically discards the period's unsubmitted rows,
	// inserts the planned rows and moves the period into QUANTIFY.
	ApplyAssignment(periodID string, qs []*Quantification) error
	UpdateQuantification(q *Quantification) error

	ListQuantifiers() ([]*User, error)
	GetUser(id string) (*User, error)
	AddAudit(e AuditEntry)
}

// PeriodService drives the period state machine OPEN -> QUANTIFY -> CLOSED
// and owns the praise->period index. Assignment runs under a per-period
// exclusive lock so at most one plan is ever committed.
type PeriodService struct {
	store PeriodStore
	now   func() time.Time
	idGen func() string
	rng   *rand.Rand
}

func NewPeriodService(store PeriodStore) *PeriodService {
	return &PeriodService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: func() string { return shortID(12) },
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// CreatePeriod opens a new period ending at endDate. Periods are implicitly
// ordered by end date, so endDate must fall after every existing period.
// Zero-valued settings fields are filled from DefaultSettings.
func (s *PeriodService) CreatePeriod(name string, endDate time.Time, settings PeriodSettings, actor string) (*Period, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 {
		return nil, NewInvalidError("period name must be at least 3 characters")
	}
	if endDate.IsZero() {
		return nil, NewInvalidError("end date required")
	}
	periods, err := s.store.ListPeriods()
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		if !endDate.After(p.EndDate) {
			return nil, NewConflictError("end date must be after the latest existing period")
		}
	}
	if settings == (PeriodSettings{}) {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	period := &Period{
		ID:        s.idGen(),
		Name:      name,
		Status:    PeriodOpen,
		EndDate:   endDate.UTC(),
		CreatedAt: s.now(),
		Settings:  settings,
	}
	if err := s.store.InsertPeriod(period); err != nil {
		return nil, err
	}
	if err := s.reindexPraise(); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "create_period", Target: period.ID, Note: name})
	return period, nil
}

// UpdatePeriod renames a period and, while it is still OPEN, moves its end
// date. The new end date must keep the period in its slot: strictly after
// every earlier period's end date and strictly before every later one's, so
// periods stay ordered and non-overlapping and praise never migrates across
// a frozen boundary. An end date change reindexes the praise->period
// association.
func (s *PeriodService) UpdatePeriod(id, name string, endDate *time.Time, actor string) (*Period, error) {
	period, err := s.getPeriod(id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		period.Name = name
	}
	if endDate != nil {
		if period.Status != PeriodOpen {
			return nil, NewConflictError("end date can only change while the period is open")
		}
		newEnd := endDate.UTC()
		periods, err := s.store.ListPeriods()
		if err != nil {
			return nil, err
		}
		for _, p := range periods {
			if p.ID == id {
				continue
			}
			if p.EndDate.Before(period.EndDate) && !newEnd.After(p.EndDate) {
				return nil, NewConflictError("end date must stay after the preceding period")
			}
			if p.EndDate.After(period.EndDate) && !newEnd.Before(p.EndDate) {
				return nil, NewConflictError("end date must stay before the following period")
			}
		}
		period.EndDate = newEnd
	}
	if err := s.store.UpdatePeriod(period); err != nil {
		return nil, err
	}
	if endDate != nil {
		if err := s.reindexPraise(); err != nil {
			return nil, err
		}
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "update_period", Target: id})
	return period, nil
}

// CreatePraise records a recognition event and files it under the earliest
// period whose end date is not before the creation time. Praise with no
// covering period stays unperiodized and is excluded from quantification.
func (s *PeriodService) CreatePraise(giver, receiver, reason, actor string) (*Praise, error) {
	giver = strings.TrimSpace(giver)
	receiver = strings.TrimSpace(receiver)
	if giver == "" || receiver == "" {
		return nil, NewInvalidError("giver and receiver required")
	}
	if giver == receiver {
		return nil, NewInvalidError("self praise is not allowed")
	}
	periods, err := s.store.ListPeriods()
	if err != nil {
		return nil, err
	}
	createdAt := s.now()
	praise := &Praise{
		ID:        s.idGen(),
		Giver:     giver,
		Receiver:  receiver,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: createdAt,
	}
	if p := ResolvePeriod(periods, createdAt); p != nil {
		praise.PeriodID = p.ID
	}
	if err := s.store.InsertPraise(praise); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: createdAt, Actor: actor, Action: "create_praise", Target: praise.ID, Note: giver + " -> " + receiver})
	return praise, nil
}

// ResolvePeriod returns the period owning praise created at t: the one with
// the lowest end date still covering t, or nil when no period does.
func ResolvePeriod(periods []*Period, t time.Time) *Period {
	var best *Period
	for _, p := range periods {
		if p.EndDate.Before(t) {
			continue
		}
		if best == nil || p.EndDate.Before(best.EndDate) {
			best = p
		}
	}
	return best
}

// reindexPraise recomputes the praise->period index. Called whenever period
// boundaries change so scoring never has to scan periods per praise item.
// Praise filed under a period that has left OPEN is frozen in place; its
// quantification rows and consensus snapshot reference that period.
func (s *PeriodService) reindexPraise() error {
	periods, err := s.store.ListPeriods()
	if err != nil {
		return err
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].EndDate.Before(periods[j].EndDate) })
	byID := make(map[string]*Period, len(periods))
	open := make([]*Period, 0, len(periods))
	for _, p := range periods {
		byID[p.ID] = p
		if p.Status == PeriodOpen {
			open = append(open, p)
		}
	}
	praises, err := s.store.ListAllPraise()
	if err != nil {
		return err
	}
	for _, pr := range praises {
		if cur := byID[pr.PeriodID]; cur != nil && cur.Status != PeriodOpen {
			continue
		}
		target := ""
		if p := ResolvePeriod(open, pr.CreatedAt); p != nil {
			target = p.ID
		}
		if target == pr.PeriodID {
			continue
		}
		if err := s.store.SetPraisePeriod(pr.ID, target); err != nil {
			return err
		}
	}
	return nil
}

// PoolRequirements reports whether the quantifier pool can cover the
// period's praise volume under its settings.
func (s *PeriodService) PoolRequirements(periodID string) (*PoolRequirements, error) {
	period, err := s.getPeriod(periodID)
	if err != nil {
		return nil, err
	}
	praises, err := s.store.ListPraiseByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	pool, err := s.store.ListQuantifiers()
	if err != nil {
		return nil, err
	}
	required, err := RequiredPoolSize(len(praises), period.Settings.QuantifiersPerPraise, period.Settings.PraisePerQuantifier)
	if err != nil {
		return nil, err
	}
	return &PoolRequirements{
		PeriodID:         periodID,
		PraiseCount:      len(praises),
		QuantifierPool:   len(pool),
		RequiredPoolSize: required,
		Met:              PoolRequirementsMet(len(pool), required),
	}, nil
}

// AssignQuantifiers moves an OPEN period into QUANTIFY: it gates on the pool
// capacity check, plans a conflict-free balanced assignment over the whole
// period and applies it atomically. Re-running against a QUANTIFY period
// rebalances as long as no quantifier has submitted anything; once any row
// carries a submission the call fails with already_quantified.
func (s *PeriodService) AssignQuantifiers(periodID, actor string) (*Period, error) {
	unlock := lockPeriod(periodID)
	defer unlock()

	period, err := s.getPeriod(periodID)
	if err != nil {
		return nil, err
	}
	switch period.Status {
	case PeriodOpen, PeriodQuantify:
	case PeriodClosed:
		return nil, NewPeriodClosedError("period is closed")
	}
	if s.now().Before(period.EndDate) {
		return nil, NewInvalidError("period has not ended yet")
	}

	existing, err := s.store.ListQuantificationsByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	for _, q := range existing {
		if q.Completed() {
			return nil, NewAlreadyQuantifiedError("period already has submitted quantifications")
		}
	}

	praises, err := s.store.ListPraiseByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	if len(praises) == 0 {
		return nil, NewInvalidError("period has no praise to quantify")
	}
	pool, err := s.store.ListQuantifiers()
	if err != nil {
		return nil, err
	}
	required, err := RequiredPoolSize(len(praises), period.Settings.QuantifiersPerPraise, period.Settings.PraisePerQuantifier)
	if err != nil {
		return nil, err
	}
	if !PoolRequirementsMet(len(pool), required) {
		return nil, NewInsufficientPoolError(fmt.Sprintf(
			"quantifier pool of %d does not meet required size %d", len(pool), required))
	}

	poolIDs := make([]string, 0, len(pool))
	for _, u := range pool {
		poolIDs = append(poolIDs, u.ID)
	}
	plan, err := PlanAssignment(praises, poolIDs, period.Settings, s.rng)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]*Quantification, 0, len(plan))
	for _, a := range plan {
		rows = append(rows, &Quantification{
			ID:         s.idGen(),
			PraiseID:   a.PraiseID,
			Quantifier: a.Quantifier,
			UpdatedAt:  now,
		})
	}
	if err := s.store.ApplyAssignment(periodID, rows); err != nil {
		return nil, err
	}
	period.Status = PeriodQuantify
	s.store.AddAudit(AuditEntry{
		Time: now, Actor: actor, Action: "assign_quantifiers", Target: periodID,
		Note: fmt.Sprintf("%d praise, %d quantifications", len(praises), len(rows)),
	})
	return period, nil
}

// ClosePeriod moves a QUANTIFY period to CLOSED once every quantification in
// it has been submitted. Consensus scores are kept current on every
// submission, so closing freezes them as the final snapshot.
func (s *PeriodService) ClosePeriod(periodID, actor string) (*Period, error) {
	unlock := lockPeriod(periodID)
	defer unlock()

	period, err := s.getPeriod(periodID)
	if err != nil {
		return nil, err
	}
	switch period.Status {
	case PeriodClosed:
		return nil, NewPeriodClosedError("period is already closed")
	case PeriodOpen:
		return nil, NewConflictError("period has not been assigned for quantification")
	}

	rows, err := s.store.ListQuantificationsByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	incomplete := 0
	for _, q := range rows {
		if !q.Completed() {
			incomplete++
		}
	}
	if incomplete > 0 {
		return nil, NewQuantificationIncompleteError(fmt.Sprintf(
			"%d of %d quantifications still unsubmitted", incomplete, len(rows)))
	}

	period.Status = PeriodClosed
	if err := s.store.UpdatePeriod(period); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "close_period", Target: periodID})
	return period, nil
}

// ReplaceQuantifier hands every unfinished assignment of one quantifier in a
// QUANTIFY period over to another pool member, keeping the conflict rules:
// the replacement must not be the giver or receiver of an affected praise and
// must not already be assigned to it. Submitted rows stay with their author.
func (s *PeriodService) ReplaceQuantifier(periodID, fromID, toID, actor string) (int, error) {
	unlock := lockPeriod(periodID)
	defer unlock()

	period, err := s.getPeriod(periodID)
	if err != nil {
		return 0, err
	}
	if period.Status != PeriodQuantify {
		return 0, NewConflictError("period is not in quantification")
	}
	if fromID == toID {
		return 0, NewInvalidError("replacement must differ from the original quantifier")
	}
	to, err := s.store.GetUser(toID)
	if err != nil {
		return 0, err
	}
	if to == nil {
		return 0, NewNotFoundError("replacement user not found")
	}
	if !to.HasRole(RoleQuantifier) {
		return 0, NewInvalidError("replacement is not a quantifier")
	}

	rows, err := s.store.ListQuantificationsByPeriod(periodID)
	if err != nil {
		return 0, err
	}
	praises, err := s.store.ListPraiseByPeriod(periodID)
	if err != nil {
		return 0, err
	}
	praiseByID := make(map[string]*Praise, len(praises))
	for _, p := range praises {
		praiseByID[p.ID] = p
	}
	toAssigned := map[string]bool{}
	var moved []*Quantification
	for _, q := range rows {
		if q.Quantifier == toID {
			toAssigned[q.PraiseID] = true
		}
		if q.Quantifier == fromID && !q.Completed() {
			moved = append(moved, q)
		}
	}
	if len(moved) == 0 {
		return 0, NewInvalidError("quantifier has no unfinished assignments in this period")
	}
	for _, q := range moved {
		p := praiseByID[q.PraiseID]
		if p == nil {
			return 0, NewNotFoundError("praise not found for quantification " + q.ID)
		}
		if p.Giver == toID || p.Receiver == toID {
			return 0, NewConflictError("replacement gave or received praise " + p.ID)
		}
		if toAssigned[q.PraiseID] {
			return 0, NewConflictError("replacement is already assigned to praise " + p.ID)
		}
	}

	now := s.now()
	for _, q := range moved {
		q.Quantifier = toID
		q.Score = nil
		q.Dismissed = false
		q.DuplicateOf = ""
		q.UpdatedAt = now
		if err := s.store.UpdateQuantification(q); err != nil {
			return 0, err
		}
	}
	s.store.AddAudit(AuditEntry{
		Time: now, Actor: actor, Action: "replace_quantifier", Target: periodID,
		Note: fmt.Sprintf("%s -> %s (%d rows)", fromID, toID, len(moved)),
	})
	return len(moved), nil
}

// QuantifierAssignment pairs one ledger row with its praise item, the view a
// quantifier works from.
type QuantifierAssignment struct {
	Quantification *Quantification `json:"quantification"`
	Praise         *Praise         `json:"praise"`
}

// ListQuantifierAssignments returns one quantifier's rows in a period.
func (s *PeriodService) ListQuantifierAssignments(periodID, quantifierID string) ([]QuantifierAssignment, error) {
	if _, err := s.getPeriod(periodID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListQuantificationsByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	praises, err := s.store.ListPraiseByPeriod(periodID)
	if err != nil {
		return nil, err
	}
	praiseByID := make(map[string]*Praise, len(praises))
	for _, p := range praises {
		praiseByID[p.ID] = p
	}
	out := []QuantifierAssignment{}
	for _, q := range rows {
		if q.Quantifier != quantifierID {
			continue
		}
		out = append(out, QuantifierAssignment{Quantification: q, Praise: praiseByID[q.PraiseID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantification.ID < out[j].Quantification.ID })
	return out, nil
}

func (s *PeriodService) getPeriod(id string) (*Period, error) {
	period, err := s.store.GetPeriod(id)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, NewNotFoundError("period not found")
	}
	return period, nil
}

