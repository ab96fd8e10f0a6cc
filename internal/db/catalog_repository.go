package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/catalog"
)

// CatalogRepository persists runtime catalog additions
type CatalogRepository struct {
	pool PoolInterface
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(pool PoolInterface) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListCatalogEntries returns the stored entries in insertion order
func (r *CatalogRepository) ListCatalogEntries(ctx context.Context) ([]catalog.Entry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	defer observe("catalog_list", time.Now())

	query := `SELECT label, series_id, added_at FROM catalog_entries ORDER BY added_at, label`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.Label, &e.SeriesID, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		e.Group = catalog.GroupDynamic
		e.Dynamic = true
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entries: %w", err)
	}

	return entries, nil
}

// AddCatalogEntry stores an entry; an existing label is kept
func (r *CatalogRepository) AddCatalogEntry(ctx context.Context, e catalog.Entry) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}
	defer observe("catalog_add", time.Now())

	addedAt := e.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO catalog_entries (label, series_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (label) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, e.Label, e.SeriesID, addedAt); err != nil {
		return fmt.Errorf("failed to insert catalog entry: %w", err)
	}

	log.Debug().
		Str("label", e.Label).
		Str("series_id", e.SeriesID).
		Msg("Catalog entry saved to database")

	return nil
}
