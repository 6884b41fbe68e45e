package services

import "time"

type PeriodStatus string

const (
	PeriodOpen     PeriodStatus = "OPEN"
	PeriodQuantify PeriodStatus = "QUANTIFY"
	PeriodClosed   PeriodStatus = "CLOSED"
)

// PeriodSettings is the quantification configuration frozen onto a period
// when it is created. Assignment and scoring read only this snapshot, so a
// later settings change never rewrites history.
type PeriodSettings struct {
	QuantifiersPerPraise int     `json:"quantifiers_per_praise"`
	PraisePerQuantifier  int     `json:"praise_per_quantifier"`
	ScoreMin             int     `json:"score_min"`
	ScoreMax             int     `json:"score_max"`
	DuplicateDiscount    float64 `json:"duplicate_discount"`
}

// Validate checks a fully specified settings value. A zero DuplicateDiscount
// is a legal configuration (duplicates then contribute nothing).
func (s PeriodSettings) Validate() error {
	if s.QuantifiersPerPraise <= 0 {
		return NewInvalidError("quantifiers per praise must be positive")
	}
	if s.PraisePerQuantifier <= 0 {
		return NewInvalidError("praise per quantifier must be positive")
	}
	if s.ScoreMax <= s.ScoreMin {
		return NewInvalidError("score range is empty")
	}
	if s.DuplicateDiscount < 0 || s.DuplicateDiscount > 1 {
		return NewInvalidError("duplicate discount must be between 0 and 1")
	}
	return nil
}

// DefaultSettings mirrors the stock community configuration.
func DefaultSettings() PeriodSettings {
	return PeriodSettings{
		QuantifiersPerPraise: 3,
		PraisePerQuantifier:  50,
		ScoreMin:             0,
		ScoreMax:             144,
		DuplicateDiscount:    0.1,
	}
}

// Period is a bounded time window grouping praise for quantification.
// Periods are ordered by EndDate ascending and never overlap; a period owns
// the praise created after the previous period's end date and before its own.
type Period struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    PeriodStatus   `json:"status"`
	EndDate   time.Time      `json:"end_date"`
	CreatedAt time.Time      `json:"created_at"`
	Settings  PeriodSettings `json:"settings"`
}

// Praise is a giver->receiver recognition event. Everything is immutable
// after creation except the derived consensus score.
type Praise struct {
	ID        string    `json:"id"`
	PeriodID  string    `json:"period_id,omitempty"`
	Giver     string    `json:"giver"`
	Receiver  string    `json:"receiver"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Score is the consensus score; ScoreRealized reports whether all
	// assigned quantifiers have submitted.
	Score         float64 `json:"score"`
	ScoreRealized bool    `json:"score_realized"`
}

// Quantification is one quantifier's scoring record for one praise item.
// Score stays nil until the quantifier submits. Dismissed and DuplicateOf
// are mutually exclusive; DuplicateOf references another Quantification
// owned by the same quantifier.
type Quantification struct {
	ID          string    `json:"id"`
	PraiseID    string    `json:"praise_id"`
	Quantifier  string    `json:"quantifier"`
	Score       *int      `json:"score,omitempty"`
	Dismissed   bool      `json:"dismissed,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Completed reports whether the quantifier has acted on this row: scored it,
// dismissed it, or marked it a duplicate.
func (q *Quantification) Completed() bool {
	return q.Dismissed || q.DuplicateOf != "" || q.Score != nil
}

const (
	RoleUser       = "USER"
	RoleQuantifier = "QUANTIFIER"
	RoleAdmin      = "ADMIN"
)

// User is a community member. Quantifier pool membership is the QUANTIFIER
// role, evaluated at assignment time.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	PassHash  []byte    `json:"-"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuditEntry is one event-log record.
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	Note   string    `json:"note,omitempty"`
}
