// Package catalog maps display labels to provider series ids. The base
// catalog is embedded; entries added at runtime are appended, de-duplicated
// by label, and optionally persisted through a Repository.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/quantlens/pkg/errs"
)

//go:embed catalog.yaml
var seed []byte

// GroupDynamic is the group of entries added at runtime
const GroupDynamic = "dynamic"

// Entry is one catalog line
type Entry struct {
	Label    string    `json:"label" yaml:"label"`
	SeriesID string    `json:"series_id" yaml:"series_id"`
	Group    string    `json:"group" yaml:"group"`
	Dynamic  bool      `json:"dynamic" yaml:"-"`
	AddedAt  time.Time `json:"added_at,omitempty" yaml:"-"`
}

// Repository persists dynamic entries
type Repository interface {
	ListCatalogEntries(ctx context.Context) ([]Entry, error)
	AddCatalogEntry(ctx context.Context, e Entry) error
}

type seedFile struct {
	Defaults []string `yaml:"defaults"`
	Entries  []Entry  `yaml:"entries"`
}

// Catalog is safe for concurrent use
type Catalog struct {
	mu       sync.RWMutex
	entries  []Entry
	byLabel  map[string]int
	defaults []string
	repo     Repository
}

// New builds a catalog from the embedded seed. repo may be nil.
func New(repo Repository) (*Catalog, error) {
	c, err := Parse(seed)
	if err != nil {
		return nil, err
	}
	c.repo = repo
	return c, nil
}

// Parse builds a catalog from a YAML seed
func Parse(data []byte) (*Catalog, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{byLabel: make(map[string]int, len(f.Entries))}
	for _, e := range f.Entries {
		e.Label = strings.TrimSpace(e.Label)
		e.SeriesID = strings.TrimSpace(e.SeriesID)
		if e.Label == "" || e.SeriesID == "" {
			return nil, fmt.Errorf("catalog entry %q has an empty label or series id", e.Label)
		}
		if _, dup := c.byLabel[e.Label]; dup {
			return nil, fmt.Errorf("duplicate catalog label %q", e.Label)
		}
		c.byLabel[e.Label] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	for _, label := range f.Defaults {
		if _, ok := c.byLabel[label]; !ok {
			return nil, fmt.Errorf("default %q is not in the catalog", label)
		}
		c.defaults = append(c.defaults, label)
	}

	return c, nil
}

// Load appends the persisted dynamic entries. It is a no-op without a
// repository.
func (c *Catalog) Load(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	stored, err := c.repo.ListCatalogEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, e := range stored {
		if _, ok := c.byLabel[e.Label]; ok {
			continue
		}
		e.Dynamic = true
		e.Group = GroupDynamic
		c.byLabel[e.Label] = len(c.entries)
		c.entries = append(c.entries, e)
		loaded++
	}

	log.Info().
		Int("loaded", loaded).
		Int("total", len(c.entries)).
		Msg("Loaded dynamic catalog entries")

	return nil
}

// LabelFor builds the display label of a search result
func LabelFor(title, seriesID string) string {
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(title), strings.TrimSpace(seriesID))
}

// Add appends a dynamic entry. An existing label is left untouched and
// reported with added == false.
func (c *Catalog) Add(ctx context.Context, label, seriesID string) (Entry, bool, error) {
	label = strings.TrimSpace(label)
	seriesID = strings.TrimSpace(seriesID)
	if label == "" || seriesID == "" {
		return Entry{}, false, errs.Config("catalog.Add", "label and series id are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.byLabel[label]; ok {
		return c.entries[i], false, nil
	}

	e := Entry{
		Label:    label,
		SeriesID: seriesID,
		Group:    GroupDynamic,
		Dynamic:  true,
		AddedAt:  time.Now().UTC(),
	}

	if c.repo != nil {
		if err := c.repo.AddCatalogEntry(ctx, e); err != nil {
			return Entry{}, false, fmt.Errorf("failed to persist catalog entry: %w", err)
		}
	}

	c.byLabel[label] = len(c.entries)
	c.entries = append(c.entries, e)

	log.Info().
		Str("label", label).
		Str("series_id", seriesID).
		Msg("Added catalog entry")

	return e, true, nil
}

// List returns a copy of all entries, base entries first
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup returns the entry for label
func (c *Catalog) Lookup(label string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byLabel[strings.TrimSpace(label)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Resolve maps labels to series ids in order
func (c *Catalog) Resolve(labels []string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(labels))
	var unknown []string
	for i, label := range labels {
		j, ok := c.byLabel[strings.TrimSpace(label)]
		if !ok {
			unknown = append(unknown, label)
			continue
		}
		ids[i] = c.entries[j].SeriesID
	}

	if len(unknown) > 0 {
		return nil, errs.Config("catalog.Resolve", "unknown catalog labels: %s", strings.Join(unknown, ", "))
	}
	return ids, nil
}

// Defaults returns the default selection labels
func (c *Catalog) Defaults() []string {
	out := make([]string, len(c.defaults))
	copy(out, c.defaults)
	return out
}

// DefaultSeriesIDs returns the series ids of the default selection
func (c *Catalog) DefaultSeriesIDs() []string {
	ids, err := c.Resolve(c.defaults)
	if err != nil {
		return nil
	}
	return ids
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
