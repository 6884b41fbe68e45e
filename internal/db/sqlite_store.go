package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/praisehq/praise/internal/api"
	"github.com/praisehq/praise/internal/services"
)

// SQLiteStore persists the full data model in a single SQLite file. All
// times are stored as RFC 3339 text and user roles as a JSON array.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sqlite store: %s: %v", prefix, err)
	}
}

func toNullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func toNullScore(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullScore(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		log.Printf("sqlite store: parse time %q: %v", v, err)
		return time.Time{}
	}
	return t
}

func encodeRoles(roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeRoles(v string) []string {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		log.Printf("sqlite store: decode roles %q: %v", v, err)
		return nil
	}
	return out
}

// ---- periods ----

const periodColumns = "id, name, status, end_date, created_at, quantifiers_per_praise, praise_per_quantifier, score_min, score_max, duplicate_discount"

func scanPeriod(row interface{ Scan(...any) error }) (*services.Period, error) {
	var p services.Period
	var endDate, createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Status, &endDate, &createdAt,
		&p.Settings.QuantifiersPerPraise, &p.Settings.PraisePerQuantifier,
		&p.Settings.ScoreMin, &p.Settings.ScoreMax, &p.Settings.DuplicateDiscount)
	if err != nil {
		return nil, err
	}
	p.EndDate = decodeTime(endDate)
	p.CreatedAt = decodeTime(createdAt)
	return &p, nil
}

func (s *SQLiteStore) InsertPeriod(p *services.Period) error {
	_, err := s.db.Exec(`INSERT INTO periods (`+periodColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, encodeTime(p.EndDate), encodeTime(p.CreatedAt),
		p.Settings.QuantifiersPerPraise, p.Settings.PraisePerQuantifier,
		p.Settings.ScoreMin, p.Settings.ScoreMax, p.Settings.DuplicateDiscount)
	return err
}

func (s *SQLiteStore) UpdatePeriod(p *services.Period) error {
	_, err := s.db.Exec(`UPDATE periods SET name = ?, status = ?, end_date = ? WHERE id = ?`,
		p.Name, p.Status, encodeTime(p.EndDate), p.ID)
	return err
}

func (s *SQLiteStore) GetPeriod(id string) (*services.Period, error) {
	row := s.db.QueryRow(`SELECT `+periodColumns+` FROM periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListPeriods() ([]*services.Period, error) {
	rows, err := s.db.Query(`SELECT ` + periodColumns + ` FROM periods ORDER BY end_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- praise ----

const praiseColumns = "id, period_id, giver, receiver, reason, created_at, score, score_realized"

func scanPraise(row interface{ Scan(...any) error }) (*services.Praise, error) {
	var p services.Praise
	var periodID, reason sql.NullString
	var createdAt string
	err := row.Scan(&p.ID, &periodID, &p.Giver, &p.Receiver, &reason, &createdAt, &p.Score, &p.ScoreRealized)
	if err != nil {
		return nil, err
	}
	p.PeriodID = periodID.String
	p.Reason = reason.String
	p.CreatedAt = decodeTime(createdAt)
	return &p, nil
}

func (s *SQLiteStore) InsertPraise(p *services.Praise) error {
	_, err := s.db.Exec(`INSERT INTO praise (`+praiseColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, toNullString(p.PeriodID), p.Giver, p.Receiver, toNullString(p.Reason),
		encodeTime(p.CreatedAt), p.Score, p.ScoreRealized)
	return err
}

func (s *SQLiteStore) GetPraise(id string) (*services.Praise, error) {
	row := s.db.QueryRow(`SELECT `+praiseColumns+` FROM praise WHERE id = ?`, id)
	p, err := scanPraise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListAllPraise() ([]*services.Praise, error) {
	return s.queryPraise(`SELECT ` + praiseColumns + ` FROM praise ORDER BY id`)
}

func (s *SQLiteStore) ListPraiseByPeriod(periodID string) ([]*services.Praise, error) {
	return s.queryPraise(`SELECT `+praiseColumns+` FROM praise WHERE period_id = ? ORDER BY id`, periodID)
}

func (s *SQLiteStore) queryPraise(query string, args ...any) ([]*services.Praise, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Praise
	for rows.Next() {
		p, err := scanPraise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetPraisePeriod(praiseID, periodID string) error {
	_, err := s.db.Exec(`UPDATE praise SET period_id = ? WHERE id = ?`, toNullString(periodID), praiseID)
	return err
}

func (s *SQLiteStore) UpdatePraiseScore(praiseID string, score float64, realized bool) error {
	_, err := s.db.Exec(`UPDATE praise SET score = ?, score_realized = ? WHERE id = ?`, score, realized, praiseID)
	return err
}

// ---- quantifications ----

const quantColumns = "id, praise_id, quantifier, score, dismissed, duplicate_of, updated_at"

func scanQuant(row interface{ Scan(...any) error }) (*services.Quantification, error) {
	var q services.Quantification
	var score sql.NullInt64
	var dup sql.NullString
	var updatedAt string
	err := row.Scan(&q.ID, &q.PraiseID, &q.Quantifier, &score, &q.Dismissed, &dup, &updatedAt)
	if err != nil {
		return nil, err
	}
	q.Score = fromNullScore(score)
	q.DuplicateOf = dup.String
	q.UpdatedAt = decodeTime(updatedAt)
	return &q, nil
}

func (s *SQLiteStore) GetQuantification(id string) (*services.Quantification, error) {
	row := s.db.QueryRow(`SELECT `+quantColumns+` FROM quantifications WHERE id = ?`, id)
	q, err := scanQuant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *SQLiteStore) UpdateQuantification(q *services.Quantification) error {
	_, err := s.db.Exec(`UPDATE quantifications SET quantifier = ?, score = ?, dismissed = ?, duplicate_of = ?, updated_at = ? WHERE id = ?`,
		q.Quantifier, toNullScore(q.Score), q.Dismissed, toNullString(q.DuplicateOf),
		encodeTime(q.UpdatedAt), q.ID)
	return err
}

func (s *SQLiteStore) ListQuantificationsByPraise(praiseID string) ([]*services.Quantification, error) {
	return s.queryQuants(`SELECT `+quantColumns+` FROM quantifications WHERE praise_id = ? ORDER BY id`, praiseID)
}

func (s *SQLiteStore) ListDuplicatesOf(quantificationID string) ([]*services.Quantification, error) {
	return s.queryQuants(`SELECT `+quantColumns+` FROM quantifications WHERE duplicate_of = ? ORDER BY id`, quantificationID)
}

func (s *SQLiteStore) ListQuantificationsByPeriod(periodID string) ([]*services.Quantification, error) {
	return s.queryQuants(`SELECT q.id, q.praise_id, q.quantifier, q.score, q.dismissed, q.duplicate_of, q.updated_at
		FROM quantifications q JOIN praise p ON p.id = q.praise_id
		WHERE p.period_id = ? ORDER BY q.id`, periodID)
}

func (s *SQLiteStore) queryQuants(query string, args ...any) ([]*services.Quantification, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Quantification
	for rows.Next() {
		q, err := scanQuant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ApplyAssignment discards the period's unsubmitted rows, inserts the new
// plan, and flips the period into quantification, all in one transaction.
func (s *SQLiteStore) ApplyAssignment(periodID string, qs []*services.Quantification) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`DELETE FROM quantifications
		WHERE praise_id IN (SELECT id FROM praise WHERE period_id = ?)
		AND score IS NULL AND dismissed = 0 AND duplicate_of IS NULL`, periodID)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO quantifications (` + quantColumns + `) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range qs {
		_, err = stmt.Exec(q.ID, q.PraiseID, q.Quantifier, toNullScore(q.Score),
			q.Dismissed, toNullString(q.DuplicateOf), encodeTime(q.UpdatedAt))
		if err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`UPDATE periods SET status = ? WHERE id = ?`, services.PeriodQuantify, periodID); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- users ----

const userColumns = "id, name, email, pass_hash, roles, created_at"

func scanUser(row interface{ Scan(...any) error }) (*services.User, error) {
	var u services.User
	var roles, createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PassHash, &roles, &createdAt)
	if err != nil {
		return nil, err
	}
	u.Roles = decodeRoles(roles)
	u.CreatedAt = decodeTime(createdAt)
	return &u, nil
}

func (s *SQLiteStore) AddUser(u *services.User) error {
	_, err := s.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.PassHash, encodeRoles(u.Roles), encodeTime(u.CreatedAt))
	return err
}

func (s *SQLiteStore) GetUser(id string) (*services.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) FindUserByEmail(email string) (*services.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) UpdateUserRoles(id string, roles []string) error {
	_, err := s.db.Exec(`UPDATE users SET roles = ? WHERE id = ?`, encodeRoles(roles), id)
	return err
}

// ListQuantifiers filters on the decoded roles array rather than a LIKE
// match so a role name embedded in another string never leaks in.
func (s *SQLiteStore) ListQuantifiers() ([]*services.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if u.HasRole(services.RoleQuantifier) {
			out = append(out, u)
		}
	}
	return out, rows.Err()
}

// ---- event log ----

func (s *SQLiteStore) AddAudit(e services.AuditEntry) {
	_, err := s.db.Exec(`INSERT INTO event_log (time, actor, action, target, note) VALUES (?,?,?,?,?)`,
		encodeTime(e.Time), e.Actor, e.Action, toNullString(e.Target), toNullString(e.Note))
	s.logErr("add audit", err)
}

func (s *SQLiteStore) ListAudit() []services.AuditEntry {
	rows, err := s.db.Query(`SELECT time, actor, action, target, note FROM event_log ORDER BY seq`)
	if err != nil {
		s.logErr("list audit", err)
		return nil
	}
	defer rows.Close()
	var out []services.AuditEntry
	for rows.Next() {
		var e services.AuditEntry
		var ts string
		var target, note sql.NullString
		if err := rows.Scan(&ts, &e.Actor, &e.Action, &target, &note); err != nil {
			s.logErr("scan audit", err)
			return out
		}
		e.Time = decodeTime(ts)
		e.Target = target.String
		e.Note = note.String
		out = append(out, e)
	}
	s.logErr("iterate audit", rows.Err())
	return out
}
