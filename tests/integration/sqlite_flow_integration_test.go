//go:build integration

package integration_test

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/praisehq/praise/internal/api"
	"github.com/praisehq/praise/internal/db"
	"github.com/praisehq/praise/internal/services"
)

func openTestStore(t *testing.T) api.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "praise.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.RunMigrations(conn, ""); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	store, err := db.NewStore(conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

// TestSQLitePeriodLifecycle runs a full period through the SQLite store:
// create, praise, assign, submit every row, close, and checks the frozen
// consensus scores survive a reread.
func TestSQLitePeriodLifecycle(t *testing.T) {
	store := openTestStore(t)
	periods := services.NewPeriodService(store)
	quantify := services.NewQuantifyService(store)

	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("q%d", i)
		err := store.AddUser(&services.User{
			ID: id, Name: id, Email: id + "@example.com",
			PassHash: []byte("x"),
			Roles:    []string{services.RoleUser, services.RoleQuantifier},
		})
		if err != nil {
			t.Fatalf("seed quantifier %s: %v", id, err)
		}
	}

	endDate := time.Now().Add(300 * time.Millisecond)
	settings := services.DefaultSettings()
	settings.PraisePerQuantifier = 10
	period, err := periods.CreatePeriod("Integration", endDate, settings, "admin")
	if err != nil {
		t.Fatalf("create period: %v", err)
	}

	var praiseIDs []string
	for _, pair := range [][2]string{{"alice", "bob"}, {"carol", "bob"}, {"alice", "dave"}} {
		p, err := periods.CreatePraise(pair[0], pair[1], "integration run", pair[0])
		if err != nil {
			t.Fatalf("create praise: %v", err)
		}
		if p.PeriodID != period.ID {
			t.Fatalf("praise filed under %q, want %q", p.PeriodID, period.ID)
		}
		praiseIDs = append(praiseIDs, p.ID)
	}

	time.Sleep(time.Until(endDate) + 50*time.Millisecond)

	if _, err := periods.AssignQuantifiers(period.ID, "admin"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := store.GetPeriod(period.ID)
	if err != nil || got == nil {
		t.Fatalf("reload period: %v", err)
	}
	if got.Status != services.PeriodQuantify {
		t.Fatalf("status = %s, want QUANTIFY", got.Status)
	}
	rows, err := store.ListQuantificationsByPeriod(period.ID)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 9 {
		t.Fatalf("created %d rows, want 9", len(rows))
	}

	score := 40
	for _, q := range rows {
		_, err := quantify.SubmitScore(services.SubmitScoreInput{
			QuantificationID: q.ID, SubmittedBy: q.Quantifier, Score: &score,
		})
		if err != nil {
			t.Fatalf("submit %s: %v", q.ID, err)
		}
	}

	if _, err := periods.ClosePeriod(period.ID, "admin"); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, id := range praiseIDs {
		p, err := store.GetPraise(id)
		if err != nil || p == nil {
			t.Fatalf("reload praise %s: %v", id, err)
		}
		if !p.ScoreRealized || p.Score != 40 {
			t.Fatalf("praise %s score = (%v, %v), want (40, true)", id, p.Score, p.ScoreRealized)
		}
	}

	entries := store.ListAudit()
	if len(entries) == 0 {
		t.Fatal("event log is empty")
	}
}
