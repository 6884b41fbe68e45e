package services

import (
	"fmt"
	"sort"
	"time"
)

// stubStore is an in-memory implementation of every service store interface
// used across the service tests.
type stubStore struct {
	periods map[string]*Period
	praises map[string]*Praise
	quants  map[string]*Quantification
	users   map[string]*User
	audits  []AuditEntry
}

func newStubStore() *stubStore {
	return &stubStore{
		periods: map[string]*Period{},
		praises: map[string]*Praise{},
		quants:  map[string]*Quantification{},
		users:   map[string]*User{},
	}
}

func (s *stubStore) InsertPeriod(p *Period) error {
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *stubStore) UpdatePeriod(p *Period) error {
	if _, ok := s.periods[p.ID]; !ok {
		return NewNotFoundError("period not found")
	}
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *stubStore) GetPeriod(id string) (*Period, error) {
	if p, ok := s.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) ListPeriods() ([]*Period, error) {
	out := make([]*Period, 0, len(s.periods))
	for _, p := range s.periods {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) InsertPraise(p *Praise) error {
	cp := *p
	s.praises[p.ID] = &cp
	return nil
}

func (s *stubStore) GetPraise(id string) (*Praise, error) {
	if p, ok := s.praises[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) ListAllPraise() ([]*Praise, error) {
	out := make([]*Praise, 0, len(s.praises))
	for _, p := range s.praises {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) ListPraiseByPeriod(periodID string) ([]*Praise, error) {
	all, _ := s.ListAllPraise()
	out := []*Praise{}
	for _, p := range all {
		if p.PeriodID == periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) SetPraisePeriod(praiseID, periodID string) error {
	p, ok := s.praises[praiseID]
	if !ok {
		return NewNotFoundError("praise not found")
	}
	p.PeriodID = periodID
	return nil
}

func (s *stubStore) UpdatePraiseScore(praiseID string, score float64, realized bool) error {
	p, ok := s.praises[praiseID]
	if !ok {
		return NewNotFoundError("praise not found")
	}
	p.Score = score
	p.ScoreRealized = realized
	return nil
}

func (s *stubStore) GetQuantification(id string) (*Quantification, error) {
	if q, ok := s.quants[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) UpdateQuantification(q *Quantification) error {
	if _, ok := s.quants[q.ID]; !ok {
		return NewNotFoundError("quantification not found")
	}
	cp := *q
	s.quants[q.ID] = &cp
	return nil
}

func (s *stubStore) listQuants() []*Quantification {
	out := make([]*Quantification, 0, len(s.quants))
	for _, q := range s.quants {
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *stubStore) ListQuantificationsByPraise(praiseID string) ([]*Quantification, error) {
	out := []*Quantification{}
	for _, q := range s.listQuants() {
		if q.PraiseID == praiseID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *stubStore) ListDuplicatesOf(quantificationID string) ([]*Quantification, error) {
	out := []*Quantification{}
	for _, q := range s.listQuants() {
		if q.DuplicateOf == quantificationID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *stubStore) ListQuantificationsByPeriod(periodID string) ([]*Quantification, error) {
	out := []*Quantification{}
	for _, q := range s.listQuants() {
		p := s.praises[q.PraiseID]
		if p != nil && p.PeriodID == periodID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *stubStore) ApplyAssignment(periodID string, qs []*Quantification) error {
	for id, q := range s.quants {
		p := s.praises[q.PraiseID]
		if p != nil && p.PeriodID == periodID && !q.Completed() {
			delete(s.quants, id)
		}
	}
	for _, q := range qs {
		cp := *q
		s.quants[q.ID] = &cp
	}
	p, ok := s.periods[periodID]
	if !ok {
		return NewNotFoundError("period not found")
	}
	p.Status = PeriodQuantify
	return nil
}

func (s *stubStore) AddUser(u *User) error {
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *stubStore) GetUser(id string) (*User, error) {
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) FindUserByEmail(email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) UpdateUserRoles(id string, roles []string) error {
	u, ok := s.users[id]
	if !ok {
		return NewNotFoundError("user not found")
	}
	u.Roles = append([]string{}, roles...)
	return nil
}

func (s *stubStore) ListQuantifiers() ([]*User, error) {
	out := []*User{}
	for _, u := range s.users {
		if u.HasRole(RoleQuantifier) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) AddAudit(e AuditEntry) {
	s.audits = append(s.audits, e)
}

// addQuantifiers seeds n pool members named q1..qn.
func (s *stubStore) addQuantifiers(n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		s.users[id] = &User{ID: id, Name: id, Roles: []string{RoleUser, RoleQuantifier}}
		ids = append(ids, id)
	}
	return ids
}

func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func intPtr(v int) *int { return &v }
