package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/ajitpratap0/quantlens/internal/catalog"
	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// MaxSearchLimit caps the number of search hits per query
const MaxSearchLimit = 50

// SearchHit is a FRED search result labelled for the catalog
type SearchHit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Label     string `json:"label"`
	Frequency string `json:"frequency"`
	Units     string `json:"units"`
	InCatalog bool   `json:"in_catalog"`
}

// Search finds FRED series by keyword. Hits without an id are dropped.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	const op = "analysis.Search"

	if s.searcher == nil {
		return nil, errs.Config(op, "no search provider configured")
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	start := time.Now()
	infos, err := s.searcher.Search(ctx, query, limit)
	metrics.RecordAnalysis(KindSearch, float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(infos))
	for _, info := range infos {
		if strings.TrimSpace(info.ID) == "" {
			continue
		}
		label := catalog.LabelFor(info.Title, info.ID)
		hit := SearchHit{
			ID:        info.ID,
			Title:     info.Title,
			Label:     label,
			Frequency: info.Frequency,
			Units:     info.Units,
		}
		if s.catalog != nil {
			_, hit.InCatalog = s.catalog.Lookup(label)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// AddToCatalog adds a series under its "title (id)" label. It reports false
// when the label was already present.
func (s *Service) AddToCatalog(ctx context.Context, seriesID, title string) (catalog.Entry, bool, error) {
	const op = "analysis.AddToCatalog"

	if s.catalog == nil {
		return catalog.Entry{}, false, errs.Config(op, "no catalog configured")
	}
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return catalog.Entry{}, false, errs.Config(op, "series id is required")
	}
	if strings.TrimSpace(title) == "" {
		title = seriesID
	}

	return s.catalog.Add(ctx, catalog.LabelFor(title, seriesID), seriesID)
}
