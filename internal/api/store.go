package api

import (
	"sort"
	"strings"
	"sync"

	"github.com/praisehq/praise/internal/services"
)

// memoryStore is the in-memory Store used by tests and as a storage
// fallback. Every accessor returns copies so callers only change store
// state through explicit updates.
type memoryStore struct {
	mu           sync.RWMutex
	periods      map[string]*services.Period
	praises      map[string]*services.Praise
	quants       map[string]*services.Quantification
	users        map[string]*services.User
	usersByEmail map[string]*services.User
	audit        []services.AuditEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		periods:      map[string]*services.Period{},
		praises:      map[string]*services.Praise{},
		quants:       map[string]*services.Quantification{},
		users:        map[string]*services.User{},
		usersByEmail: map[string]*services.User{},
		audit:        []services.AuditEntry{},
	}
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store { return newMemoryStore() }

// --- periods ---

func (s *memoryStore) InsertPeriod(p *services.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *memoryStore) UpdatePeriod(p *services.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.periods[p.ID] == nil {
		return services.NewNotFoundError("period not found")
	}
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *memoryStore) GetPeriod(id string) (*services.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.periods[id]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) ListPeriods() ([]*services.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Period, 0, len(s.periods))
	for _, p := range s.periods {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

// --- praise ---

func (s *memoryStore) InsertPraise(p *services.Praise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.praises[p.ID] = &cp
	return nil
}

func (s *memoryStore) GetPraise(id string) (*services.Praise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.praises[id]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) ListAllPraise() ([]*services.Praise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Praise, 0, len(s.praises))
	for _, p := range s.praises {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) SetPraisePeriod(praiseID, periodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.praises[praiseID]
	if p == nil {
		return services.NewNotFoundError("praise not found")
	}
	p.PeriodID = periodID
	return nil
}

func (s *memoryStore) ListPraiseByPeriod(periodID string) ([]*services.Praise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Praise{}
	for _, p := range s.praises {
		if p.PeriodID == periodID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) UpdatePraiseScore(praiseID string, score float64, realized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.praises[praiseID]
	if p == nil {
		return services.NewNotFoundError("praise not found")
	}
	p.Score = score
	p.ScoreRealized = realized
	return nil
}

// --- quantifications ---

func (s *memoryStore) GetQuantification(id string) (*services.Quantification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.quants[id]
	if q == nil {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (s *memoryStore) UpdateQuantification(q *services.Quantification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quants[q.ID] == nil {
		return services.NewNotFoundError("quantification not found")
	}
	cp := *q
	s.quants[q.ID] = &cp
	return nil
}

func (s *memoryStore) ListQuantificationsByPraise(praiseID string) ([]*services.Quantification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Quantification{}
	for _, q := range s.quants {
		if q.PraiseID == praiseID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) ListQuantificationsByPeriod(periodID string) ([]*services.Quantification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Quantification{}
	for _, q := range s.quants {
		p := s.praises[q.PraiseID]
		if p != nil && p.PeriodID == periodID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) ListDuplicatesOf(quantificationID string) ([]*services.Quantification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.Quantification{}
	for _, q := range s.quants {
		if q.DuplicateOf == quantificationID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) ApplyAssignment(periodID string, qs []*services.Quantification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := s.periods[periodID]
	if period == nil {
		return services.NewNotFoundError("period not found")
	}
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
	period.Status = services.PeriodQuantify
	return nil
}

// --- users ---

func (s *memoryStore) AddUser(u *services.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	s.usersByEmail[strings.ToLower(u.Email)] = &cp
	return nil
}

func (s *memoryStore) GetUser(id string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.users[id]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) FindUserByEmail(email string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.usersByEmail[strings.ToLower(email)]
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) UpdateUserRoles(id string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	if u == nil {
		return services.NewNotFoundError("user not found")
	}
	u.Roles = append([]string(nil), roles...)
	return nil
}

func (s *memoryStore) ListQuantifiers() ([]*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*services.User{}
	for _, u := range s.users {
		if u.HasRole(services.RoleQuantifier) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- event log ---

func (s *memoryStore) AddAudit(e services.AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *memoryStore) ListAudit() []services.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]services.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}
