package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AssetRecord captures what one run did for one asset.
type AssetRecord struct {
	Asset            string `json:"asset"`
	Mode             string `json:"mode,omitempty"`
	CandlesAdded     int    `json:"candles_added"`
	SessionsBuilt    int    `json:"sessions_built"`
	SessionsSkipped  int    `json:"sessions_skipped,omitempty"`
	ReportsPublished int    `json:"reports_published"`
	Skipped          bool   `json:"skipped,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	DurationMs       int64  `json:"duration_ms"`
}

// RunRecord captures an end-to-end engine run for audit and analysis.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	Trigger    string         `json:"trigger,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Assets     []AssetRecord  `json:"assets,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Writer persists run records to a directory as JSON files (journal style).
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteRun writes a run record to a timestamped JSON file and returns its path.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = w.nowFn()
	}
	w.seq++
	name := fmt.Sprintf("run_%s_%05d.json", rec.StartedAt.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
