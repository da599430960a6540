package trade

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SaveMode selects which persistence targets receive the record. The
// append-only log is always written; the artifact file and the daily
// aggregate are opt-in. Modes are named by effect.
type SaveMode string

const (
	SaveLogOnly   SaveMode = "log-only"
	SaveArtifact  SaveMode = "log+artifact"
	SaveAggregate SaveMode = "log+aggregate"
	SaveAll       SaveMode = "all"
)

// ParseSaveMode validates a save-mode flag value
func ParseSaveMode(s string) (SaveMode, error) {
	switch m := SaveMode(s); m {
	case SaveLogOnly, SaveArtifact, SaveAggregate, SaveAll:
		return m, nil
	}
	return "", fmt.Errorf("invalid save mode: %q", s)
}

func (m SaveMode) artifact() bool {
	return m == SaveArtifact || m == SaveAll
}

func (m SaveMode) aggregate() bool {
	return m == SaveAggregate || m == SaveAll
}

// Paths holds the output locations for the three persistence targets. It is
// passed in explicitly so tests can point the sink at temporary directories.
type Paths struct {
	LogPath     string // append-only JSONL trade log
	ArtifactDir string // per-trade JSON artifacts
	SummaryDir  string // daily aggregate files
}

// Sink persists built trade records
type Sink interface {
	// Save writes the record to the targets selected by mode and returns the
	// list of file locations touched
	Save(rec *Record, mode SaveMode) ([]string, error)
}

// FileSink implements the Sink interface on the local filesystem. Writes are
// not transactional across the three targets: a failure mid-way leaves the
// earlier targets written.
type FileSink struct {
	paths      Paths
	timeSource TimeSource
}

// NewFileSink creates a new FileSink instance
func NewFileSink(paths Paths) *FileSink {
	return &FileSink{paths: paths, timeSource: &defaultTimeSource{}}
}

// NewFileSinkWithTimeSource creates a new FileSink with a custom time source
// for testing
func NewFileSinkWithTimeSource(paths Paths, timeSource TimeSource) *FileSink {
	return &FileSink{paths: paths, timeSource: timeSource}
}

// Save appends to the trade log, then writes the artifact and daily summary
// when requested
func (s *FileSink) Save(rec *Record, mode SaveMode) ([]string, error) {
	saved := []string{}

	if err := s.appendLog(rec); err != nil {
		return saved, fmt.Errorf("appending trade log: %w", err)
	}
	saved = append(saved, s.paths.LogPath)

	if mode.artifact() {
		path, err := s.writeArtifact(rec)
		if err != nil {
			return saved, fmt.Errorf("writing trade artifact: %w", err)
		}
		saved = append(saved, path)
	}

	if mode.aggregate() {
		path, err := s.updateDailySummary(rec)
		if err != nil {
			return saved, fmt.Errorf("updating daily summary: %w", err)
		}
		saved = append(saved, path)
	}

	return saved, nil
}

// appendLog writes the record as one self-contained JSON line
func (s *FileSink) appendLog(rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(s.paths.LogPath), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	f, err := os.OpenFile(s.paths.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing log line: %w", err)
	}
	return nil
}

// writeArtifact writes the record as a standalone pretty-printed JSON file
// named by trade id and timestamp
func (s *FileSink) writeArtifact(rec *Record) (string, error) {
	if err := os.MkdirAll(s.paths.ArtifactDir, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	name := fmt.Sprintf("trade_%s_%s.json", rec.TradeID, s.timeSource.Now().Format("20060102_150405"))
	path := filepath.Join(s.paths.ArtifactDir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling record: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// updateDailySummary loads today's aggregate (creating it on the first trade
// of the day), appends the record, recomputes the totals from the full list
// and rewrites the file. The read-modify-rewrite cycle runs under an
// exclusive file lock so concurrent invocations cannot lose each other's
// appends.
func (s *FileSink) updateDailySummary(rec *Record) (string, error) {
	if err := os.MkdirAll(s.paths.SummaryDir, 0755); err != nil {
		return "", fmt.Errorf("creating summary directory: %w", err)
	}

	now := s.timeSource.Now()
	day := now.Format("2006-01-02")
	path := filepath.Join(s.paths.SummaryDir, fmt.Sprintf("daily_summary_%s.json", day))

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("locking daily summary: %w", err)
	}
	defer lock.Unlock()

	summary := DailySummary{
		Date:      day,
		Trades:    []Record{},
		CreatedAt: now,
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &summary); err != nil {
			return "", fmt.Errorf("parsing existing summary: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading summary: %w", err)
	}

	summary.Trades = append(summary.Trades, *rec)
	summary.TotalTrades = len(summary.Trades)
	var total float64
	for _, t := range summary.Trades {
		if t.PnLAmount != nil {
			total += *t.PnLAmount
		}
	}
	summary.TotalPnL = total
	summary.UpdatedAt = now

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	return path, nil
}
