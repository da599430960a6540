// Package journal provides read-only access to the append-only trade log:
// substring search and aggregate statistics.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tradejournal/internal/trade"
)

const defaultSearchLimit = 10

// Reader scans the append-only trade log. It never mutates the log; a
// missing log reads as an empty journal, not an error.
type Reader struct {
	logPath string
}

// NewReader creates a new Reader over the given trade log
func NewReader(logPath string) *Reader {
	return &Reader{logPath: logPath}
}

// readAll loads every parseable record from the log. Corrupt lines are
// skipped so one bad write cannot poison the whole journal.
func (r *Reader) readAll() ([]trade.Record, error) {
	f, err := os.Open(r.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	var records []trade.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec trade.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trade log: %w", err)
	}
	return records, nil
}

// Search returns up to limit records whose fields contain the query,
// case-insensitively, newest first. An empty query matches everything.
func (r *Reader) Search(query string, limit int) ([]trade.Record, error) {
	records, err := r.readAll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := strings.ToLower(strings.TrimSpace(query))
	matches := make([]trade.Record, 0, limit)
	for i := len(records) - 1; i >= 0 && len(matches) < limit; i-- {
		if q == "" || matchesQuery(&records[i], q) {
			matches = append(matches, records[i])
		}
	}
	return matches, nil
}

func matchesQuery(rec *trade.Record, q string) bool {
	if strings.Contains(strings.ToLower(rec.TradeID), q) {
		return true
	}
	fields := []*string{
		rec.Ticker,
		rec.Timeframe,
		rec.Direction,
		rec.PnL,
		rec.DateTime,
		rec.ReasonOrAnnotations,
		rec.ImageSource,
	}
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), q) {
			return true
		}
	}
	return false
}

// Stats aggregates the whole journal
type Stats struct {
	TotalTrades int            `json:"total_trades"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
	WinRate     float64        `json:"win_rate"`
	TotalPnL    float64        `json:"total_pnl"`
	BestTrade   *float64       `json:"best_trade"`
	WorstTrade  *float64       `json:"worst_trade"`
	ByTicker    map[string]int `json:"by_ticker"`
}

// Stats recomputes aggregate statistics from the full log. Records without a
// pnl amount count toward the total but not toward win/loss figures.
func (r *Reader) Stats() (*Stats, error) {
	records, err := r.readAll()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalTrades: len(records),
		ByTicker:    map[string]int{},
	}
	for i := range records {
		rec := &records[i]
		if rec.Ticker != nil {
			stats.ByTicker[*rec.Ticker]++
		}
		if rec.PnLAmount == nil {
			continue
		}
		amount := *rec.PnLAmount
		stats.TotalPnL += amount
		if amount > 0 {
			stats.Wins++
		} else if amount < 0 {
			stats.Losses++
		}
		if stats.BestTrade == nil || amount > *stats.BestTrade {
			best := amount
			stats.BestTrade = &best
		}
		if stats.WorstTrade == nil || amount < *stats.WorstTrade {
			worst := amount
			stats.WorstTrade = &worst
		}
	}
	if decided := stats.Wins + stats.Losses; decided > 0 {
		stats.WinRate = float64(stats.Wins) / float64(decided) * 100
	}
	return stats, nil
}
