package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"
)

// ExportPraiseCSV renders a period's praise items with their frozen
// consensus scores, one row per praise.
func ExportPraiseCSV(praises []*Praise) ([]byte, error) {
	sorted := make([]*Praise, len(praises))
	copy(sorted, praises)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"praise_id", "giver", "receiver", "reason", "created_at", "score"})
	for _, p := range sorted {
		rec := []string{
			p.ID,
			p.Giver,
			p.Receiver,
			p.Reason,
			p.CreatedAt.UTC().Format(time.RFC3339),
			ftoa(p.Score),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportReceiverSummaryCSV aggregates a period's consensus scores per
// receiver, the leaderboard view reward distribution reads from.
func ExportReceiverSummaryCSV(praises []*Praise) ([]byte, error) {
	type agg struct {
		count int
		total float64
	}
	byReceiver := map[string]*agg{}
	for _, p := range praises {
		a := byReceiver[p.Receiver]
		if a == nil {
			a = &agg{}
			byReceiver[p.Receiver] = a
		}
		a.count++
		a.total += p.Score
	}
	receivers := make([]string, 0, len(byReceiver))
	for r := range byReceiver {
		receivers = append(receivers, r)
	}
	sort.Strings(receivers)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"receiver", "praise_count", "total_score"})
	for _, r := range receivers {
		a := byReceiver[r]
		rec := []string{r, strconv.Itoa(a.count), ftoa(round2(a.total))}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
