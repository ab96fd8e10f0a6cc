package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportRecord is a stored daily report
type ReportRecord struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Date      time.Time       `json:"date"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReportRepository stores daily reports
type ReportRepository struct {
	pool PoolInterface
}

// NewReportRepository creates a new report repository
func NewReportRepository(pool PoolInterface) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Save stores a report, replacing the payload of an existing report with the
// same kind, date and subject
func (r *ReportRepository) Save(ctx context.Context, rec *ReportRecord) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}
	defer observe("report_save", time.Now())

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO daily_reports (id, kind, report_date, subject, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, report_date, subject) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Kind,
		rec.Date,
		rec.Subject,
		[]byte(rec.Payload),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	log.Debug().
		Str("report_id", rec.ID.String()).
		Str("kind", rec.Kind).
		Str("subject", rec.Subject).
		Msg("Report saved to database")

	return nil
}

// List returns the most recent reports of a kind, newest first. An empty
// kind lists every kind.
func (r *ReportRepository) List(ctx context.Context, kind string, limit int) ([]ReportRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	defer observe("report_list", time.Now())

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, report_date, subject, payload, created_at
		FROM daily_reports
		WHERE ($1 = '' OR kind = $1)
		ORDER BY report_date DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Date, &rec.Subject, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		rec.Payload = payload
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return records, nil
}

// Count returns the number of stored reports
func (r *ReportRepository) Count(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("database connection not available")
	}
	defer observe("report_count", time.Now())

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}
