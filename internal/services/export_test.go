package services

import (
	"strings"
	"testing"
	"time"
)

func exportPraises() []*Praise {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*Praise{
		{ID: "p2", Giver: "carol", Receiver: "bob", Reason: "docs", CreatedAt: base.Add(2 * time.Hour), Score: 12.5, ScoreRealized: true},
		{ID: "p1", Giver: "alice", Receiver: "bob", Reason: "release", CreatedAt: base, Score: 29, ScoreRealized: true},
		{ID: "p3", Giver: "alice", Receiver: "dave", Reason: "review", CreatedAt: base.Add(3 * time.Hour), Score: 8.25, ScoreRealized: true},
	}
}

func TestExportPraiseCSV(t *testing.T) {
	b, err := ExportPraiseCSV(exportPraises())
	if err != nil {
		t.Fatalf("ExportPraiseCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3 rows", len(lines))
	}
	if lines[0] != "praise_id,giver,receiver,reason,created_at,score" {
		t.Fatalf("header = %q", lines[0])
	}
	// Rows come out in creation order.
	if !strings.HasPrefix(lines[1], "p1,") || !strings.HasPrefix(lines[2], "p2,") || !strings.HasPrefix(lines[3], "p3,") {
		t.Fatalf("row order = %v", lines[1:])
	}
	if !strings.HasSuffix(lines[1], ",29.00") {
		t.Fatalf("p1 row = %q, want score 29.00", lines[1])
	}
}

func TestExportReceiverSummaryCSV(t *testing.T) {
	b, err := ExportReceiverSummaryCSV(exportPraises())
	if err != nil {
		t.Fatalf("ExportReceiverSummaryCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 receivers", len(lines))
	}
	if lines[0] != "receiver,praise_count,total_score" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "bob,2,41.50" {
		t.Fatalf("bob row = %q", lines[1])
	}
	if lines[2] != "dave,1,8.25" {
		t.Fatalf("dave row = %q", lines[2])
	}
}

func TestExportEmpty(t *testing.T) {
	b, err := ExportPraiseCSV(nil)
	if err != nil {
		t.Fatalf("ExportPraiseCSV: %v", err)
	}
	if strings.TrimSpace(string(b)) != "praise_id,giver,receiver,reason,created_at,score" {
		t.Fatalf("empty export = %q", string(b))
	}
}
