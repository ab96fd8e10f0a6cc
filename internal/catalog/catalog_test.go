package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quantlens/pkg/errs"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	failAdd error
}

func (r *memoryRepo) ListCatalogEntries(ctx context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...), nil
}

func (r *memoryRepo) AddCatalogEntry(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdd != nil {
		return r.failAdd
	}
	r.entries = append(r.entries, e)
	return nil
}

func TestEmbeddedCatalog(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, 15, c.Len())
	assert.Equal(t, []string{"EUR/USD (DEXUSEU)", "S&P 500 (SP500)", "US 10Y Treasury (DGS10)"}, c.Defaults())
	assert.Equal(t, []string{"DEXUSEU", "SP500", "DGS10"}, c.DefaultSeriesIDs())

	e, ok := c.Lookup("Gold (GOLDAMGBD228NLBM)")
	require.True(t, ok)
	assert.Equal(t, "GOLDAMGBD228NLBM", e.SeriesID)
	assert.Equal(t, "commodities", e.Group)
	assert.False(t, e.Dynamic)

	list := c.List()
	assert.Equal(t, "EUR/USD (DEXUSEU)", list[0].Label)
	assert.Equal(t, "US Real GDP (GDPC1)", list[len(list)-1].Label)
}

func TestParseRejectsBadSeeds(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "entries: [::"},
		{"empty id", `entries: [{label: "A", series_id: ""}]`},
		{"duplicate label", `entries: [{label: "A", series_id: X}, {label: "A", series_id: Y}]`},
		{"unknown default", "defaults: [B]\nentries: [{label: A, series_id: X}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	ids, err := c.Resolve([]string{"VIX (VIXCLS)", " S&P 500 (SP500) ", "US CPI (CPIAUCSL)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VIXCLS", "SP500", "CPIAUCSL"}, ids)

	_, err = c.Resolve([]string{"VIX (VIXCLS)", "Bitcoin", "Ether"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
	assert.Contains(t, err.Error(), "Bitcoin, Ether")
}

func TestAddDeduplicatesByLabel(t *testing.T) {
	repo := &memoryRepo{}
	c, err := New(repo)
	require.NoError(t, err)
	ctx := context.Background()

	label := LabelFor(" Crude Oil Prices: Brent ", "DCOILBRENTEU")
	assert.Equal(t, "Crude Oil Prices: Brent (DCOILBRENTEU)", label)

	e, added, err := c.Add(ctx, label, "DCOILBRENTEU")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, e.Dynamic)
	assert.Equal(t, GroupDynamic, e.Group)
	assert.False(t, e.AddedAt.IsZero())

	_, added, err = c.Add(ctx, label, "OTHER")
	require.NoError(t, err)
	assert.False(t, added)

	ids, err := c.Resolve([]string{label})
	require.NoError(t, err)
	assert.Equal(t, []string{"DCOILBRENTEU"}, ids)
	assert.Equal(t, 16, c.Len())
	assert.Len(t, repo.entries, 1)

	// Base labels are never overwritten
	_, added, err = c.Add(ctx, "S&P 500 (SP500)", "NOPE")
	require.NoError(t, err)
	assert.False(t, added)

	_, _, err = c.Add(ctx, "", "X")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestAddPersistFailure(t *testing.T) {
	c, err := New(&memoryRepo{failAdd: errors.New("db down")})
	require.NoError(t, err)

	_, _, err = c.Add(context.Background(), "X (X)", "X")
	require.Error(t, err)
	_, ok := c.Lookup("X (X)")
	assert.False(t, ok)
}

func TestLoadFromRepository(t *testing.T) {
	repo := &memoryRepo{entries: []Entry{
		{Label: "Brent (DCOILBRENTEU)", SeriesID: "DCOILBRENTEU"},
		{Label: "S&P 500 (SP500)", SeriesID: "SHADOW"},
	}}
	c, err := New(repo)
	require.NoError(t, err)
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, 16, c.Len())
	e, ok := c.Lookup("Brent (DCOILBRENTEU)")
	require.True(t, ok)
	assert.True(t, e.Dynamic)

	ids, err := c.Resolve([]string{"S&P 500 (SP500)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SP500"}, ids)

	noRepo, err := New(nil)
	require.NoError(t, err)
	assert.NoError(t, noRepo.Load(context.Background()))
}

func TestConcurrentAdd(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := fmt.Sprintf("Series %d (S%d)", i%5, i%5)
			_, _, err := c.Add(context.Background(), label, fmt.Sprintf("S%d", i%5))
			assert.NoError(t, err)
			_ = c.List()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.Len())
}
