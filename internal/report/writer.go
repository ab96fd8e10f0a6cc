package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes reports as single-row CSV files
type Writer struct {
	dir string
}

// NewWriter creates a writer for dir; the directory is created on first write
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir}
}

// FileName returns the file name of a report: daily_report_<date>.csv for
// assets and daily_portfolio_report_<date>.csv for portfolios
func FileName(r Report) string {
	if r.Kind() == KindPortfolio {
		return fmt.Sprintf("daily_portfolio_report_%s.csv", r.ReportDate())
	}
	return fmt.Sprintf("daily_report_%s.csv", r.ReportDate())
}

// Write writes the report and returns the file path. An existing file for
// the same day is replaced.
func (w *Writer) Write(r Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(r.Header()); err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	if err := cw.Write(r.Record()); err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(w.dir, FileName(r))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
